package idgen

import (
	"crypto/rand"
	"encoding/binary"
)

// MaxInt50 is the largest value NewInt50 returns
const MaxInt50 = 1<<50 - 1

var _int50Generator = func() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	// zero is never handed out so callers can treat it as "unset"
	return int64(binary.BigEndian.Uint64(b[:])%MaxInt50) + 1
}

// NewInt50 returns a random positive integer that fits in 50 bits,
// small enough to survive a JSON round trip through float64
func NewInt50() int64 {
	return _int50Generator()
}

func UseInt50(fn func() int64) {
	_int50Generator = fn
}
