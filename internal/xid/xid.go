package xid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier.
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}

// Document formats a sequential document number such as INV-20261018-0007.
func Document(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, at.Format("20060102"), seq)
}
