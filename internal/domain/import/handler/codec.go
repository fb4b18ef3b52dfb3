package handler

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec lets plain Go structs travel as Connect messages, so the review
// UI can call procedures with ordinary JSON bodies.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// CodecOption configures Connect clients and handlers for these messages.
func CodecOption() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
