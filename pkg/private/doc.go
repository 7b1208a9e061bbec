// Package private implements the encrypted tree of privfs.
//
// Nodes (files and directories) are encrypted with a key derived from their skip ratchet,
// and stored in a Forest: a HAMT mapping accumulated labels to the set of CIDs written at
// that label. Labels are derived from secret name segments and the revision key, so that
// blocks and labels alone reveal nothing about the shape of the tree.
//
// A Ref is the capability needed to find and decrypt one revision of a node.
//
// Small file content lives in the file node. Larger content is sealed in chunks kept in a
// content block store, which may be a colder tier than the one holding the tree.
//
// Forests are persistent values. Concurrent writers produce divergent forests that are
// reconciled with Merge, then Resolve at each divergent label: directories are merged,
// diverging files are reported as a MergeConflict.
package private
