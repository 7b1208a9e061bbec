// Package accumulator implements an RSA accumulator over sets of name segments.
//
// A trusted setup picks an RSA modulus N of unknown factorization and a generator g,
// a quadratic residue modulo N. Name segments are 256-bit primes. The accumulator of a
// set S is g raised to the product of the segments of S, modulo N. Accumulating is
// therefore independent of the order of the segments, and the digest reveals nothing
// about them.
//
// Membership of a segment x is proven by w = g^(product of S without x): w^x == acc.
// Non-membership is proven with Bezout coefficients of x and the product of S.
package accumulator
