package idgen

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

var _ulidGenerator = func() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// NewULID returns a lexically sortable id, used for request ids
func NewULID() string {
	return _ulidGenerator()
}

func UseULID(fn func() string) {
	_ulidGenerator = fn
}
