package utils

import (
	"crypto/rand"
	"strconv"
	"time"
)

// roomCodeAlphabet avoids easily confused characters (0/O, 1/l/I).
const roomCodeAlphabet = "23456789abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ"

// NewRoomCode returns a short join code suitable for typing by hand.
func NewRoomCode() string {
	const size = 6

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		// Fallback to timestamp if crypto/rand is unavailable.
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf)
}
