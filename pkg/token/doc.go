// Package token signs and verifies the access and refresh JWTs that carry a
// session across requests.
//
// Each token class has its own dual signing-key pair: new tokens always sign
// with the active key, and verification retries the previous key only when
// the active key fails on the signature itself. Rotation swaps the pair in a
// single atomic store and the previous key survives until every token signed
// under it has expired, so keys can roll under live traffic without a single
// verification failure.
package token
