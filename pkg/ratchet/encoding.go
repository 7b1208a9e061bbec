package ratchet

import (
	"github.com/vmihailenco/msgpack/v5"
)

var (
	_ msgpack.CustomEncoder = &Ratchet{}
	_ msgpack.CustomDecoder = &Ratchet{}
)

// EncodeMsgpack writes the ratchet as a fixed-size binary
func (r *Ratchet) EncodeMsgpack(enc *msgpack.Encoder) error {
	buf, _ := r.MarshalBinary()
	return enc.EncodeBytes(buf)
}

// DecodeMsgpack reads a ratchet written by EncodeMsgpack
func (r *Ratchet) DecodeMsgpack(dec *msgpack.Decoder) error {
	buf, err := dec.DecodeBytes()
	if err != nil {
		return ErrInvalidRatchet.Wrap(err)
	}
	return r.UnmarshalBinary(buf)
}
