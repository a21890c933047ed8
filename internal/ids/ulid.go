// Package ids generates the identifiers stamped onto outbound envelopes and
// diagnostic messages.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Monotonic entropy keeps ids generated within the same millisecond ordered.
// The source is not safe for concurrent use, so it sits behind a mutex.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a fresh ULID string. Ids sort by creation time, which keeps
// emitted events and their diagnostics correlatable in log order.
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
