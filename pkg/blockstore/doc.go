// Package blockstore stores immutable blocks of bytes under their content identifier (CID).
//
// Blocks are identified by CIDv1 with a sha2-256 multihash. The codec recorded in the CID
// tells how the block should be interpreted: Raw for opaque (e.g. encrypted) blocks,
// MsgPack for canonical msgpack structures.
//
// A BlockStore is backed by any storage.Store: the key of a block is the string form of its CID.
package blockstore
