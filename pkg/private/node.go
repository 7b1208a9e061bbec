package private

import (
	"io"
	"sort"
	"time"

	"github.com/oneconcern/privfs/pkg/accumulator"
)

// Kind of node
type Kind uint8

const (
	// KindFile is a file node
	KindFile Kind = iota + 1
	// KindDirectory is a directory node
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Node is either a *File or a *Directory
type Node interface {
	Kind() Kind
	header() *Header
	metadata() *Metadata
	clone() Node
}

var (
	_ Node = &File{}
	_ Node = &Directory{}
)

// File node.
//
// Content is kept inline in the node block. Larger content is moved by Forest.Put to
// the content block store, and External then locates it: read it with Forest.Content.
type File struct {
	Header   Header
	Metadata Metadata
	Content  []byte
	External *ExternalContent
}

// NewFile creates a file under a parent name, with fresh secrets drawn from rng
func NewFile(parent accumulator.Name, now time.Time, content []byte, rng io.Reader) (*File, error) {
	h, err := newHeader(parent, rng)
	if err != nil {
		return nil, err
	}
	return &File{Header: h, Metadata: NewMetadata(now), Content: append([]byte(nil), content...)}, nil
}

// Kind of node
func (f *File) Kind() Kind { return KindFile }

func (f *File) header() *Header { return &f.Header }

func (f *File) metadata() *Metadata { return &f.Metadata }

func (f *File) clone() Node {
	return &File{
		Header:   f.Header.Clone(),
		Metadata: f.Metadata.Clone(),
		Content:  append([]byte(nil), f.Content...),
		External: f.External.clone(),
	}
}

// Directory node. Entries are the refs of the children, by name.
type Directory struct {
	Header   Header
	Metadata Metadata
	Entries  map[string]Ref
}

// NewDirectory creates an empty directory under a parent name, with fresh secrets drawn from rng
func NewDirectory(parent accumulator.Name, now time.Time, rng io.Reader) (*Directory, error) {
	h, err := newHeader(parent, rng)
	if err != nil {
		return nil, err
	}
	return &Directory{Header: h, Metadata: NewMetadata(now), Entries: make(map[string]Ref)}, nil
}

// Kind of node
func (d *Directory) Kind() Kind { return KindDirectory }

func (d *Directory) header() *Header { return &d.Header }

func (d *Directory) metadata() *Metadata { return &d.Metadata }

func (d *Directory) clone() Node {
	entries := make(map[string]Ref, len(d.Entries))
	for k, v := range d.Entries {
		entries[k] = v
	}
	return &Directory{Header: d.Header.Clone(), Metadata: d.Metadata.Clone(), Entries: entries}
}

// Names of the entries, sorted
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.Entries))
	for name := range d.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HeaderOf returns a copy of the header of a node
func HeaderOf(n Node) Header {
	return n.header().Clone()
}

// MetadataOf returns a copy of the metadata of a node
func MetadataOf(n Node) Metadata {
	return n.metadata().Clone()
}
