package anon

import (
	"math/rand"
)

const (
	codeDigits   = "0123456789"
	codeFallback = "abcdefghijklmnopqrstuvwxyz0123456789"
	codeLength   = 6
	codeAttempts = 10
)

// codeSequence yields candidate dialog codes: a bounded number of short numeric
// codes, then a single longer alphanumeric one.
func codeSequence(rnd func(n int) int) []string {
	if rnd == nil {
		rnd = rand.Intn
	}
	codes := make([]string, 0, codeAttempts+1)
	for i := 0; i < codeAttempts; i++ {
		codes = append(codes, randomCode(rnd, codeDigits, codeLength))
	}
	return append(codes, randomCode(rnd, codeFallback, codeLength+2))
}

func randomCode(rnd func(n int) int, alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rnd(len(alphabet))]
	}
	return string(b)
}
