// Package idcodec maps between the 128-bit identifiers the store partitions
// on and the compact integers exposed by the API.
package idcodec

import (
	"encoding/binary"
	"errors"
	"strconv"

	"github.com/google/uuid"
)

// MaxUserID is the largest numeric user id that fits a user wide id.
const MaxUserID = 1<<62 - 1

var ErrUserIDOutOfRange = errors.New("user id out of range")

// userNamespace seeds user wide ids ("user-<id>" under the OID namespace).
var userNamespace = uuid.NameSpaceOID

// Compact returns the first 40 bits (10 hex digits) of id as an integer.
// Distinct wide ids can share a compact id; the registry detects that.
func Compact(id uuid.UUID) int64 {
	var v int64
	for _, b := range id[:5] {
		v = v<<8 | int64(b)
	}
	return v
}

// NewWideID returns a random (v4) wide id.
func NewWideID() uuid.UUID {
	return uuid.New()
}

// UserWideID derives the stable wide id of a numeric user id. The result is
// a version 8 uuid: the first 8 bytes come from the SHA-1 name hash of
// "user-<id>", the low 62 bits hold the id itself, so UserID inverts it
// without a lookup.
func UserWideID(userID int64) (uuid.UUID, error) {
	if userID < 0 || userID > MaxUserID {
		return uuid.Nil, ErrUserIDOutOfRange
	}

	seed := uuid.NewSHA1(userNamespace, []byte("user-"+strconv.FormatInt(userID, 10)))

	var w uuid.UUID
	copy(w[:8], seed[:8])
	w[6] = (w[6] & 0x0f) | 0x80
	binary.BigEndian.PutUint64(w[8:], uint64(userID))
	w[8] = (w[8] & 0x3f) | 0x80
	return w, nil
}

// UserID recovers the numeric id from a wide id built by UserWideID. It
// reports false for any other uuid.
func UserID(w uuid.UUID) (int64, bool) {
	if w.Version() != 8 || w.Variant() != uuid.RFC4122 {
		return 0, false
	}

	id := int64(binary.BigEndian.Uint64(w[8:]) & MaxUserID)
	expected, err := UserWideID(id)
	if err != nil || expected != w {
		return 0, false
	}
	return id, true
}

// PublicUserID is UserID with a fallback to Compact for wide ids that were
// not derived from a numeric user id.
func PublicUserID(w uuid.UUID) int64 {
	if id, ok := UserID(w); ok {
		return id
	}
	return Compact(w)
}
