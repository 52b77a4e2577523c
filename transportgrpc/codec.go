// Package transportgrpc implements raft.Transport over gRPC using a JSON
// wire codec, so peer RPCs and client forwarding need no protoc codegen
// step: every envelope already round-trips through encoding/json elsewhere
// in this module.
package transportgrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error  { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
