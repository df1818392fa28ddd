package engine

import (
	"math/rand"
	"sync"
	"time"
)

const (
	defaultCodeLength = 6
	maxCodeAttempts   = 5

	// No lookalike characters; codes are typed by hand from a screen.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// newCodeGenerator returns a generator of short uppercase join codes.
// Uniqueness among active sessions is enforced by the claim/insert path, not
// here; collisions simply trigger regeneration.
func newCodeGenerator(length int) func() string {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		buf := make([]byte, length)
		for i := range buf {
			buf[i] = codeAlphabet[rnd.Intn(len(codeAlphabet))]
		}
		return string(buf)
	}
}
