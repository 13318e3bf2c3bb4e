package lifecycle

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const (
	orderNoPrefix    = "BW"
	orderNoAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	orderNoSuffixLen = 6
)

// NumberGenerator produces human-facing order numbers of the form BW-YYYYMMDD-XXXXXX.
// Uniqueness is enforced by the store; callers regenerate on a duplicate.
type NumberGenerator struct {
	clock  func() time.Time
	random io.Reader
}

// NewNumberGenerator creates a generator reading the date from clock.
func NewNumberGenerator(clock func() time.Time) *NumberGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &NumberGenerator{clock: clock, random: rand.Reader}
}

// Generate returns a new order number.
func (g *NumberGenerator) Generate() (string, error) {
	suffix := make([]byte, 0, orderNoSuffixLen)
	buf := make([]byte, 16)

	// Rejection sampling keeps every character equally likely.
	limit := byte(256 - 256%len(orderNoAlphabet))
	for len(suffix) < orderNoSuffixLen {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			suffix = append(suffix, orderNoAlphabet[int(b)%len(orderNoAlphabet)])
			if len(suffix) == orderNoSuffixLen {
				break
			}
		}
	}

	date := g.clock().UTC().Format("20060102")
	return fmt.Sprintf("%s-%s-%s", orderNoPrefix, date, suffix), nil
}
