package app

import (
	"bytes"
	"context"

	"github.com/favbox/dock/common/json"
	"github.com/favbox/dock/protocol"
	"github.com/favbox/dock/protocol/consts"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Stats 返回输出运行统计的处理器。
//
// snapshot 的结果默认编码为 JSON；请求头 Accept 为 application/x-protobuf 时
// 编码为 google.protobuf.Struct。
func Stats(snapshot func() any) HandlerFunc {
	return func(ctx context.Context, req []byte) ([]byte, error) {
		data, err := json.Marshal(snapshot())
		if err != nil {
			return nil, err
		}

		if accept, ok := protocol.HeaderValue(req, "Accept"); ok && bytes.Contains(accept, []byte(consts.MIMEProtobuf)) {
			body, err := toProtobuf(data)
			if err != nil {
				return nil, err
			}
			return protocol.AppendResponse(nil, consts.StatusOK, consts.MIMEProtobuf, body, true), nil
		}
		return protocol.AppendResponse(nil, consts.StatusOK, consts.MIMEApplicationJSON, data, true), nil
	}
}

func toProtobuf(data []byte) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}
