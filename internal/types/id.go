// README: Identifier and token helpers shared across modules.
package types

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/oklog/ulid/v2"
)

type ID string

// NewID returns a ULID. Lexical order follows creation time within a process.
func NewID() ID {
	return ID(ulid.Make().String())
}

// RandomToken returns n random bytes as lowercase hex.
func RandomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (id ID) String() string {
	return string(id)
}
