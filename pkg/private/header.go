package private

import (
	"io"

	"github.com/oneconcern/privfs/pkg/accumulator"
	"github.com/oneconcern/privfs/pkg/hamt"
	"github.com/oneconcern/privfs/pkg/private/status"
	"github.com/oneconcern/privfs/pkg/ratchet"
	"github.com/vmihailenco/msgpack/v5"
)

const revisionDomain = "privfs/private/revision"

// Header holds the secrets shared by all revisions of a node.
//
// Name accumulates the segments of all ancestors and the node's own INumber.
// The Ratchet is the generation of the revision held by this header.
type Header struct {
	INumber accumulator.Segment
	Ratchet *ratchet.Ratchet
	Name    accumulator.Name
}

var (
	_ msgpack.CustomEncoder = &Header{}
	_ msgpack.CustomDecoder = &Header{}
)

func newHeader(parent accumulator.Name, rng io.Reader) (Header, error) {
	inumber, err := accumulator.NewSegment(rng)
	if err != nil {
		return Header{}, err
	}
	r, err := ratchet.New(rng)
	if err != nil {
		return Header{}, err
	}
	return Header{
		INumber: inumber,
		Ratchet: r,
		Name:    parent.With(inumber),
	}, nil
}

// Clone the header
func (h Header) Clone() Header {
	return Header{INumber: h.INumber, Ratchet: h.Ratchet.Clone(), Name: h.Name}
}

// TemporalKey of the current revision
func (h Header) TemporalKey() Key {
	return keyOf(h.Ratchet)
}

// RevisionName is the name of the current revision: the node name with a segment hashed from the temporal key
func (h Header) RevisionName() accumulator.Name {
	key := h.TemporalKey()
	return h.Name.With(accumulator.NewHashedSegment(revisionDomain, key[:]))
}

// Label of the current revision in a forest
func (h Header) Label(setup *accumulator.Setup) hamt.Digest {
	return hamt.Digest(h.RevisionName().Accumulate(setup).Digest())
}

// at returns a copy of the header at another generation
func (h Header) at(r *ratchet.Ratchet) Header {
	return Header{INumber: h.INumber, Ratchet: r, Name: h.Name}
}

// EncodeMsgpack writes [inumber, ratchet, name]
func (h *Header) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(3); err != nil {
		return err
	}
	if err := enc.EncodeBytes(h.INumber[:]); err != nil {
		return err
	}
	if err := h.Ratchet.EncodeMsgpack(enc); err != nil {
		return err
	}
	return h.Name.EncodeMsgpack(enc)
}

// DecodeMsgpack reads a header written by EncodeMsgpack
func (h *Header) DecodeMsgpack(dec *msgpack.Decoder) error {
	l, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if l != 3 {
		return status.ErrInvalidNode.WrapMessage("header of %d fields", l)
	}
	raw, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	inumber, err := accumulator.SegmentFromBytes(raw)
	if err != nil {
		return err
	}
	r := new(ratchet.Ratchet)
	if err = r.DecodeMsgpack(dec); err != nil {
		return err
	}
	var name accumulator.Name
	if err = name.DecodeMsgpack(dec); err != nil {
		return err
	}
	if !name.Has(inumber) {
		return status.ErrInvalidNode.WrapMessage("name does not hold the inumber")
	}
	h.INumber, h.Ratchet, h.Name = inumber, r, name
	return nil
}
