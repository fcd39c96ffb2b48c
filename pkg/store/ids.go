package store

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
)

// idEpoch anchors the timestamp portion of generated identifiers. Using
// a recent epoch keeps the base-36 encoding inside 8 characters for
// roughly 89 years.
var idEpoch = time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)

const idRandomSpace = 36 * 36 * 36

// IDGenerator mints sortable card identifiers: 8 base-36 characters of
// milliseconds since the epoch followed by 3 random base-36 characters.
// Lexicographic order therefore follows creation order. The timestamp
// portion is bumped when two ids would share a millisecond, so ids from
// one generator never collide on the time component.
type IDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	rnd  func(n int) int
	last int64
}

// NewIDGenerator returns a generator reading time from now. A nil now
// uses the wall clock.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{
		now: now,
		rnd: rand.N[int],
	}
}

// Next mints a fresh identifier.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UTC().Sub(idEpoch).Milliseconds()
	if ts <= g.last {
		ts = g.last + 1
	}
	g.last = ts

	return pad36(ts, 8) + pad36(int64(g.rnd(idRandomSpace)), 3)
}

// IDTimestamp recovers the creation time encoded in an identifier.
// Malformed ids report ok false.
func IDTimestamp(id string) (time.Time, bool) {
	if len(id) < 8 {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(id[:8], 36, 64)
	if err != nil {
		return time.Time{}, false
	}
	return idEpoch.Add(time.Duration(ms) * time.Millisecond), true
}

func pad36(v int64, width int) string {
	s := strconv.FormatInt(v, 36)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
