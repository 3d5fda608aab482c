package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type snapshot struct {
	InFlight int64 `json:"in_flight"`
	Rejected int64 `json:"rejected"`
}

func TestStatsJSON(t *testing.T) {
	h := Stats(func() any { return snapshot{InFlight: 2, Rejected: 5} })
	resp, err := h(context.Background(), []byte("GET /stats HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.Nil(t, err)

	head, body, _ := strings.Cut(string(resp), "\r\n\r\n")
	assert.Contains(t, head, "Content-Type: application/json")
	assert.Contains(t, head, "Connection: close")
	assert.JSONEq(t, `{"in_flight":2,"rejected":5}`, body)
}

func TestStatsProtobuf(t *testing.T) {
	h := Stats(func() any { return snapshot{InFlight: 1, Rejected: 3} })
	resp, err := h(context.Background(), []byte("GET /stats HTTP/1.1\r\naccept: application/x-protobuf\r\n\r\n"))
	require.Nil(t, err)

	head, body, _ := strings.Cut(string(resp), "\r\n\r\n")
	assert.Contains(t, head, "Content-Type: application/x-protobuf")

	var s structpb.Struct
	require.Nil(t, proto.Unmarshal([]byte(body), &s))
	assert.Equal(t, float64(1), s.Fields["in_flight"].GetNumberValue())
	assert.Equal(t, float64(3), s.Fields["rejected"].GetNumberValue())
}
