package private

import (
	"encoding/hex"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/privfs/pkg/hamt"
	"github.com/oneconcern/privfs/pkg/private/status"
	"github.com/oneconcern/privfs/pkg/ratchet"
	"github.com/vmihailenco/msgpack/v5"
)

// KeySize is the size of temporal keys
const KeySize = 32

// Key is the symmetric key of one revision of a node
type Key [KeySize]byte

func keyOf(r *ratchet.Ratchet) Key {
	return Key(r.DeriveKey())
}

// Ref locates and decrypts one revision of a node
type Ref struct {
	Label       hamt.Digest
	TemporalKey Key
	ContentCID  cid.Cid
}

var (
	_ msgpack.CustomEncoder = Ref{}
	_ msgpack.CustomDecoder = &Ref{}
)

// String never shows the key
func (r Ref) String() string {
	return fmt.Sprintf("%s@%v", hex.EncodeToString(r.Label[:8]), r.ContentCID)
}

// Equal refs designate the same revision
func (r Ref) Equal(other Ref) bool {
	return r.Label == other.Label && r.TemporalKey == other.TemporalKey && r.ContentCID.Equals(other.ContentCID)
}

// EncodeMsgpack writes [label, key, cid]
func (r Ref) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(3); err != nil {
		return err
	}
	if err := enc.EncodeBytes(r.Label[:]); err != nil {
		return err
	}
	if err := enc.EncodeBytes(r.TemporalKey[:]); err != nil {
		return err
	}
	return enc.EncodeBytes(r.ContentCID.Bytes())
}

// DecodeMsgpack reads a ref written by EncodeMsgpack
func (r *Ref) DecodeMsgpack(dec *msgpack.Decoder) error {
	l, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if l != 3 {
		return status.ErrInvalidNode.WrapMessage("ref of %d fields", l)
	}
	label, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	key, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	raw, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	if len(label) != hamt.DigestSize || len(key) != KeySize {
		return status.ErrInvalidNode.WrapMessage("malformed ref")
	}
	c, err := cid.Cast(raw)
	if err != nil {
		return status.ErrInvalidNode.Wrap(err)
	}
	copy(r.Label[:], label)
	copy(r.TemporalKey[:], key)
	r.ContentCID = c
	return nil
}
