// Package encoding provides the serialization used for deployment history
// snapshots. Snapshot bytes are msgpack, optionally wrapped in zstd.
//
// Thread Safety: every function is safe for concurrent use.
package encoding

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes a value to msgpack format.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes msgpack data into v.
func Unmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	// Strings stay strings when decoding into interface{}
	dec.UseLooseInterfaceDecoding(true)

	return dec.Decode(v)
}
