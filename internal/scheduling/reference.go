package scheduling

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const referenceSuffixLen = 4

const latinUpper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ReferenceGenerator produces human-readable appointment references:
// PREFIX-yyyymmdd-hhmmss-XXXX. The prefix and timestamp make references
// sortable by creation time to the second; the random suffix keeps the
// collision window small but not zero, so persistence treats reference
// assignment as re-triable.
type ReferenceGenerator struct {
	prefix string
	now    func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewReferenceGenerator creates a generator with the given prefix. The
// clock and rand source are injected so tests are deterministic.
func NewReferenceGenerator(prefix string, now func() time.Time, rnd *rand.Rand) *ReferenceGenerator {
	if prefix == "" {
		prefix = "APT"
	}
	if now == nil {
		now = time.Now
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &ReferenceGenerator{
		prefix: strings.ToUpper(prefix),
		now:    now,
		rnd:    rnd,
	}
}

// Generate returns a new reference. Uniqueness is not guaranteed here;
// the booking engine retries on a persistence-time collision.
func (g *ReferenceGenerator) Generate() string {
	ts := g.now().UTC()

	g.mu.Lock()
	suffix := make([]byte, referenceSuffixLen)
	for i := range suffix {
		// Intn is uniform over the alphabet, no modulo bias.
		suffix[i] = latinUpper[g.rnd.Intn(len(latinUpper))]
	}
	g.mu.Unlock()

	return fmt.Sprintf("%s-%s-%s-%s",
		g.prefix,
		ts.Format("20060102"),
		ts.Format("150405"),
		suffix,
	)
}
