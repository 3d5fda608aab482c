package consts

// 常用的内容类型。
const (
	MIMETextPlain       = "text/plain"
	MIMETextPlainUTF8   = "text/plain; charset=utf-8"
	MIMETextHtml        = "text/html"
	MIMEApplicationJSON = "application/json"
	MIMEProtobuf        = "application/x-protobuf"
	MIMEOctetStream     = "application/octet-stream"
)
