// Package hamt implements a persistent hash array mapped trie, keyed by 32-byte digests.
//
// Each key maps to a set of CIDs. Tries are immutable: every write returns a new trie
// sharing all unchanged subtries with the previous one.
//
// The serialized form is canonical. A pointer holds a bucket of pairs if and only if
// its subtrie holds at most BucketSize keys, pairs and values are sorted, and children
// follow bitmap order. Two tries with the same content therefore store to the same CID,
// whatever the history of insertions, removals and merges that produced them.
package hamt
