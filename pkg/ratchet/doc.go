// Package ratchet implements a skip ratchet: a one-way hash chain key schedule
// that can be advanced by any number of steps in sub-linear time.
//
// The state holds three seeds. The small seed is hashed on every step. After SmallEpoch
// small steps the medium seed is hashed and the small seed is reseeded from it. After
// MediumEpoch medium steps the large seed is hashed and both lower seeds are reseeded.
//
// A holder of a ratchet may derive every later generation, but not any earlier one.
package ratchet
