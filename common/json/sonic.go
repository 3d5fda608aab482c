//go:build (linux || windows || darwin) && amd64 && !stdjson

package json

import "github.com/bytedance/sonic"

// Name 是当前使用的 JSON 实现名称。
const Name = "sonic"

var (
	api = sonic.ConfigStd

	// Marshal 使用 sonic 编码 JSON。
	Marshal = api.Marshal
	// Unmarshal 使用 sonic 解码 JSON。
	Unmarshal = api.Unmarshal
	// MarshalIndent 使用 sonic 编码带缩进的 JSON。
	MarshalIndent = api.MarshalIndent
	// NewDecoder 返回从 io.Reader 读取的解码器。
	NewDecoder = api.NewDecoder
	// NewEncoder 返回写入 io.Writer 的编码器。
	NewEncoder = api.NewEncoder
)
