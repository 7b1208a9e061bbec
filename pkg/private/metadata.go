package private

import (
	"time"
)

// Metadata of a node, encrypted with its content
type Metadata struct {
	Created  time.Time         `msgpack:"created"`
	Modified time.Time         `msgpack:"modified"`
	Extra    map[string]string `msgpack:"extra,omitempty"`
}

// NewMetadata created and modified at some time
func NewMetadata(now time.Time) Metadata {
	now = now.UTC()
	return Metadata{Created: now, Modified: now}
}

// Touch updates the modification time
func (m *Metadata) Touch(now time.Time) {
	m.Modified = now.UTC()
}

// Clone metadata
func (m Metadata) Clone() Metadata {
	if m.Extra == nil {
		return m
	}
	extra := make(map[string]string, len(m.Extra))
	for k, v := range m.Extra {
		extra[k] = v
	}
	m.Extra = extra
	return m
}

// merge keeps the earliest creation and the latest modification
func (m Metadata) merge(other Metadata) Metadata {
	out := m.Clone()
	if other.Created.Before(out.Created) {
		out.Created = other.Created
	}
	if other.Modified.After(out.Modified) {
		out.Modified = other.Modified
	}
	for k, v := range other.Extra {
		if _, ok := out.Extra[k]; ok {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]string)
		}
		out.Extra[k] = v
	}
	return out
}
