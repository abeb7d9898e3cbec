// Package shortid generates short human-shareable identifiers, used for
// invite secrets.
package shortid

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Length is the identifier length in characters.
const Length = 12

// New returns a fresh short identifier: the tail of a ULID, which is
// pure entropy in Crockford base32. Timestamp bits are deliberately
// excluded so the identifier leaks no creation time.
func New() string {
	id := ulid.MustNew(ulid.Now(), rand.Reader).String()
	return strings.ToLower(id[len(id)-Length:])
}
