package hamt

import (
	"bytes"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

const (
	structureName = "hamt"
	formatVersion = 1
)

// Node layout: [bitmask, [pointer...]]. A pointer is either the binary CID of a child,
// or an array of pairs [key, [value...]].

func encodeNode(enc *msgpack.Encoder, n *Node) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeBytes(n.bitmask); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(n.pointers)); err != nil {
		return err
	}
	for _, p := range n.pointers {
		if p.IsBucket() {
			if err := encodeBucket(enc, p.bucket); err != nil {
				return err
			}
			continue
		}
		link := p.Link()
		if !link.Defined() {
			return ErrInvalidNode.WrapMessage("child must be stored before its parent")
		}
		if err := enc.EncodeBytes(link.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func encodeBucket(enc *msgpack.Encoder, bucket []Pair) error {
	if err := enc.EncodeArrayLen(len(bucket)); err != nil {
		return err
	}
	for _, pair := range bucket {
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeBytes(pair.Key[:]); err != nil {
			return err
		}
		if err := enc.EncodeArrayLen(len(pair.Values)); err != nil {
			return err
		}
		for _, v := range pair.Values {
			if err := enc.EncodeBytes(v.Bytes()); err != nil {
				return err
			}
		}
	}
	return nil
}

func isBin(code byte) bool {
	return code == msgpcode.Bin8 || code == msgpcode.Bin16 || code == msgpcode.Bin32
}

func decodeNode(dec *msgpack.Decoder, s settings) (*Node, error) {
	l, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, ErrInvalidNode.Wrap(err)
	}
	if l != 2 {
		return nil, ErrInvalidNode.WrapMessage("expected 2 fields, got %d", l)
	}

	bitmask, err := dec.DecodeBytes()
	if err != nil {
		return nil, ErrInvalidNode.Wrap(err)
	}
	if len(bitmask) != bitmaskSize(s.bitWidth) {
		return nil, ErrInvalidNode.WrapMessage("bitmask of %d bytes, expected %d", len(bitmask), bitmaskSize(s.bitWidth))
	}
	if extra := (1 << s.bitWidth) % 8; extra != 0 && bitmask[len(bitmask)-1]>>uint(extra) != 0 {
		return nil, ErrInvalidNode.WrapMessage("bitmask has bits beyond the fan-out")
	}

	count, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, ErrInvalidNode.Wrap(err)
	}
	if count != bitmaskCount(bitmask) {
		return nil, ErrInvalidNode.WrapMessage("%d pointers for %d bits set", count, bitmaskCount(bitmask))
	}

	n := &Node{bitmask: bitmask, pointers: make([]*Pointer, 0, count)}
	for i := 0; i < count; i++ {
		code, err := dec.PeekCode()
		if err != nil {
			return nil, ErrInvalidNode.Wrap(err)
		}
		if isBin(code) {
			raw, err := dec.DecodeBytes()
			if err != nil {
				return nil, ErrInvalidNode.Wrap(err)
			}
			link, err := cid.Cast(raw)
			if err != nil {
				return nil, ErrInvalidNode.Wrap(err)
			}
			n.pointers = append(n.pointers, linkPointer(link))
			continue
		}

		bucket, err := decodeBucket(dec, s)
		if err != nil {
			return nil, err
		}
		n.pointers = append(n.pointers, bucketPointer(bucket))
	}
	return n, nil
}

func decodeBucket(dec *msgpack.Decoder, s settings) ([]Pair, error) {
	l, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, ErrInvalidNode.Wrap(err)
	}
	if l < 1 || l > s.bucketSize {
		return nil, ErrInvalidNode.WrapMessage("bucket of %d pairs, expected within [1, %d]", l, s.bucketSize)
	}

	bucket := make([]Pair, 0, l)
	for i := 0; i < l; i++ {
		fields, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, ErrInvalidNode.Wrap(err)
		}
		if fields != 2 {
			return nil, ErrInvalidNode.WrapMessage("pair of %d fields", fields)
		}

		rawKey, err := dec.DecodeBytes()
		if err != nil {
			return nil, ErrInvalidNode.Wrap(err)
		}
		if len(rawKey) != DigestSize {
			return nil, ErrInvalidNode.WrapMessage("key of %d bytes", len(rawKey))
		}
		var pair Pair
		copy(pair.Key[:], rawKey)
		if i > 0 && bucket[i-1].Key.Compare(pair.Key) >= 0 {
			return nil, ErrInvalidNode.WrapMessage("bucket keys are not sorted")
		}

		nv, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, ErrInvalidNode.Wrap(err)
		}
		if nv < 1 {
			return nil, ErrInvalidNode.WrapMessage("key %v without values", pair.Key)
		}
		pair.Values = make([]cid.Cid, 0, nv)
		for j := 0; j < nv; j++ {
			raw, err := dec.DecodeBytes()
			if err != nil {
				return nil, ErrInvalidNode.Wrap(err)
			}
			v, err := cid.Cast(raw)
			if err != nil {
				return nil, ErrInvalidNode.Wrap(err)
			}
			if j > 0 && compareCID(pair.Values[j-1], v) >= 0 {
				return nil, ErrInvalidNode.WrapMessage("values are not sorted")
			}
			pair.Values = append(pair.Values, v)
		}
		bucket = append(bucket, pair)
	}
	return bucket, nil
}

func encodeRoot(s settings, root *Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(5); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(structureName); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint(formatVersion); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint(uint64(s.bitWidth)); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint(uint64(s.bucketSize)); err != nil {
		return nil, err
	}
	if err := encodeNode(enc, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeChild(n *Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeNode(msgpack.NewEncoder(&buf), n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRoot(data []byte, s settings) (settings, *Node, error) {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	l, err := dec.DecodeArrayLen()
	if err != nil {
		return s, nil, ErrInvalidNode.Wrap(err)
	}
	if l != 5 {
		return s, nil, ErrInvalidNode.WrapMessage("root of %d fields", l)
	}
	name, err := dec.DecodeString()
	if err != nil {
		return s, nil, ErrInvalidNode.Wrap(err)
	}
	if name != structureName {
		return s, nil, ErrInvalidNode.WrapMessage("not a hamt root: %q", name)
	}
	version, err := dec.DecodeUint64()
	if err != nil {
		return s, nil, ErrInvalidNode.Wrap(err)
	}
	if version != formatVersion {
		return s, nil, ErrInvalidNode.WrapMessage("unsupported version %d", version)
	}
	bitWidth, err := dec.DecodeUint64()
	if err != nil {
		return s, nil, ErrInvalidNode.Wrap(err)
	}
	bucketSize, err := dec.DecodeUint64()
	if err != nil {
		return s, nil, ErrInvalidNode.Wrap(err)
	}
	if bitWidth > maxBitWidth || bucketSize > 1<<16 {
		return s, nil, ErrInvalidNode.WrapMessage("parameters out of range")
	}
	s.bitWidth, s.bucketSize = int(bitWidth), int(bucketSize)
	if err = s.validate(); err != nil {
		return s, nil, ErrInvalidNode.Wrap(err)
	}

	root, err := decodeNode(dec, s)
	if err != nil {
		return s, nil, err
	}
	if err = ensureConsumed(r); err != nil {
		return s, nil, err
	}
	return s, root, nil
}

func decodeChild(data []byte, s settings) (*Node, error) {
	r := bytes.NewReader(data)
	n, err := decodeNode(msgpack.NewDecoder(r), s)
	if err != nil {
		return nil, err
	}
	if err = ensureConsumed(r); err != nil {
		return nil, err
	}
	return n, nil
}

func ensureConsumed(r io.Reader) error {
	if br, ok := r.(*bytes.Reader); ok && br.Len() != 0 {
		return ErrInvalidNode.WrapMessage("%d trailing bytes", br.Len())
	}
	return nil
}
