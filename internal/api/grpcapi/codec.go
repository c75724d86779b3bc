package grpcapi

import "encoding/json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec over
// plain JSON, so the hand-written message structs in messages.go need
// no protobuf runtime. Registered server-side via
// grpc.ForceServerCodec in NewGRPCServer.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}
