package session

import "math/rand"

// Room codes are short enough to read out loud. The alphabet drops the
// glyphs people misread: no 0/1 and no I/O.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLen matches the original 4-character shareable codes.
const DefaultCodeLen = 4

// GenerateCode returns a random room code of n characters. Uniqueness is
// only established when the create call round-trips; callers retry on a
// collision.
func GenerateCode(n int) string {
	if n <= 0 {
		n = DefaultCodeLen
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}
