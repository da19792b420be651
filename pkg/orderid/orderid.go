package orderid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	orderPrefix    = "AH"
	failoverPrefix = "failover"
)

// New returns a fresh order identifier.
//
// Identifiers are UUIDv7-based: collision-resistant under concurrent
// commits in the same instant, while the embedded millisecond timestamp
// keeps them roughly chronologically sortable for downstream consumers.
func New() string {
	return orderPrefix + "-" + generate()
}

// NewFailover returns an identifier for an order persisted via the
// failover store, distinguishable from primary order ids at a glance.
func NewFailover() string {
	return failoverPrefix + "-" + generate()
}

// IsFailover reports whether the id was issued by the failover path.
func IsFailover(id string) bool {
	return strings.HasPrefix(id, failoverPrefix+"-")
}

func generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the entropy source does; fall back to v4
		// rather than surfacing an error for id generation.
		id = uuid.New()
	}
	return fmt.Sprint(id)
}
