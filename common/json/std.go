//go:build stdjson || !(amd64 && (linux || windows || darwin))

package json

import "encoding/json"

// Name 是当前使用的 JSON 实现名称。
const Name = "encoding/json"

var (
	// Marshal 使用标准库编码 JSON。
	Marshal = json.Marshal
	// Unmarshal 使用标准库解码 JSON。
	Unmarshal = json.Unmarshal
	// MarshalIndent 使用标准库编码带缩进的 JSON。
	MarshalIndent = json.MarshalIndent
	// NewDecoder 返回从 io.Reader 读取的解码器。
	NewDecoder = json.NewDecoder
	// NewEncoder 返回写入 io.Writer 的编码器。
	NewEncoder = json.NewEncoder
)
