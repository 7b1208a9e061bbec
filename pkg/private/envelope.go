package private

import (
	"io"

	"github.com/oneconcern/privfs/pkg/encoding"
	"github.com/oneconcern/privfs/pkg/private/status"
	"golang.org/x/crypto/chacha20poly1305"
)

// plaintext is the encrypted payload of a block: kind and metadata travel with the content
type plaintext struct {
	_msgpack struct{} `msgpack:",as_array"`

	Kind     Kind
	Header   *Header
	Metadata Metadata
	Content  []byte
	Entries  map[string]Ref
	External *ExternalContent
}

func encodePlaintext(n Node) ([]byte, error) {
	p := plaintext{Kind: n.Kind(), Header: n.header(), Metadata: *n.metadata()}
	switch node := n.(type) {
	case *File:
		p.Content = node.Content
		p.External = node.External
	case *Directory:
		p.Entries = node.Entries
	default:
		return nil, status.ErrInvalidNode.WrapMessage("unsupported node %T", n)
	}
	return encoding.Marshal(&p)
}

func decodePlaintext(data []byte) (Node, error) {
	var p plaintext
	if err := encoding.Unmarshal(data, &p); err != nil {
		return nil, status.ErrInvalidNode.Wrap(err)
	}
	if p.Header == nil || p.Header.Ratchet == nil {
		return nil, status.ErrInvalidNode.WrapMessage("missing header")
	}
	p.Metadata.Created = p.Metadata.Created.UTC()
	p.Metadata.Modified = p.Metadata.Modified.UTC()

	switch p.Kind {
	case KindFile:
		if len(p.Entries) != 0 {
			return nil, status.ErrInvalidNode.WrapMessage("file with entries")
		}
		if p.External != nil && len(p.Content) != 0 {
			return nil, status.ErrInvalidNode.WrapMessage("file with both inline and external content")
		}
		return &File{Header: *p.Header, Metadata: p.Metadata, Content: p.Content, External: p.External}, nil
	case KindDirectory:
		if len(p.Content) != 0 || p.External != nil {
			return nil, status.ErrInvalidNode.WrapMessage("directory with content")
		}
		if p.Entries == nil {
			p.Entries = make(map[string]Ref)
		}
		return &Directory{Header: *p.Header, Metadata: p.Metadata, Entries: p.Entries}, nil
	default:
		return nil, status.ErrInvalidNode.WrapMessage("unknown kind %d", p.Kind)
	}
}

// seal encrypts a node with XChaCha20-Poly1305: the block is nonce || ciphertext
func seal(key Key, n Node, rng io.Reader) ([]byte, error) {
	pt, err := encodePlaintext(n)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(pt)+aead.Overhead())
	if _, err = io.ReadFull(rng, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, pt, nil), nil
}

// open decrypts and decodes a block sealed under key
func open(key Key, block []byte) (Node, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	if len(block) < aead.NonceSize()+aead.Overhead() {
		return nil, status.ErrDecryptionFailure.WrapMessage("block of %d bytes is too short", len(block))
	}
	nonce, ciphertext := block[:aead.NonceSize()], block[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, status.ErrDecryptionFailure.Wrap(err)
	}
	return decodePlaintext(pt)
}
