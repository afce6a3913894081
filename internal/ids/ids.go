// Package ids issues the identifiers used for principals, incidents and
// audit entries.
package ids

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Identifiers are ULIDs: time-prefixed and lexicographically sortable, so
// listings ordered by id roughly follow creation order and no database
// sequence is needed.
var gen = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{
	entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
}

// New returns the next identifier. Safe for concurrent use; ids issued
// within the same millisecond stay strictly increasing.
func New() string {
	gen.Lock()
	defer gen.Unlock()
	return ulid.MustNew(ulid.Now(), gen.entropy).String()
}
