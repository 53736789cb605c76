package types

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	UUID_PREFIX_SUBSCRIPTION = "sub"
	UUID_PREFIX_PURCHASE     = "pur"
	UUID_PREFIX_PLAN_CHANGE  = "plch"
	UUID_PREFIX_PREORDER     = "preo"
	UUID_PREFIX_JOB          = "job"
)

// GenerateUUID returns a new lexicographically sortable unique id.
func GenerateUUID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}

// GenerateUUIDWithPrefix returns a new unique id with the given entity prefix.
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}
