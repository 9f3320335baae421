package moderation

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/oklog/ulid/v2"
)

func newEntropy() *ulid.MonotonicEntropy {
	return ulid.Monotonic(rand.Reader, 0)
}

// newID returns a ULID; ids generated in the same millisecond stay ordered.
func (c *core) newID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(c.now()), c.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func generateSecret() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
