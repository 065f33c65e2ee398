package model

import "github.com/vmihailenco/msgpack/v5"

// EncodeMsgPack serializes any broadcastable value (OrderBookSnapshot,
// ConfirmedSignal, AnomalyEvent) to MsgPack for the websocket broadcast
// boundary.
func EncodeMsgPack(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// DecodeMsgPack deserializes a MsgPack payload into v.
func DecodeMsgPack(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
