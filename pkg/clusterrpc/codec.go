// Package clusterrpc is the wire protocol between pkg/shim's Cluster
// backend, pkg/clustermanager, and pkg/clusteragent. It rides on grpc for
// framing, keepalive, and mTLS, but never depends on protoc-generated
// message types: every request/response is a plain Go struct marshaled
// by a hand-rolled JSON codec, so the service contract compiles and
// evolves like any other package in this tree instead of needing a
// generator step. RPCs only ever carry control information (a memo URI,
// a writer id, an agent id) — the invocation and result bytes they
// describe stay in the shared blob store, never on this wire.
package clusterrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's encoding package. Clients select it
// with grpc.CallContentSubtype; the server picks it up from the request's
// content-subtype.
const codecName = "json"

// jsonCodec implements encoding.Codec by marshaling request/response
// structs as JSON instead of protobuf wire format.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
