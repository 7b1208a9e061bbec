// Package encoding provides the canonical msgpack codec used for every persisted structure.
//
// Map keys are sorted, so that equal values always produce identical bytes and identical CIDs.
package encoding

import (
	"bytes"

	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrEncode is returned when a value cannot be serialized
	ErrEncode = errors.New("failed to encode msgpack")

	// ErrDecode is returned when bytes cannot be deserialized into a value
	ErrDecode = errors.New("failed to decode msgpack")
)

// Marshal a value in canonical form
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, ErrEncode.WrapMessage("%T", v).Wrap(err)
	}
	return buf.Bytes(), nil
}

// Unmarshal bytes into the value pointed to by v. Trailing bytes are rejected.
func Unmarshal(data []byte, v interface{}) error {
	r := bytes.NewReader(data)
	dec := msgpack.GetDecoder()
	dec.Reset(r)
	err := dec.Decode(v)
	msgpack.PutDecoder(dec)
	if err != nil {
		return ErrDecode.WrapMessage("%T", v).Wrap(err)
	}
	if r.Len() != 0 {
		return ErrDecode.WrapMessage("%T: %d trailing bytes", v, r.Len())
	}
	return nil
}
