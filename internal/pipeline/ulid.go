package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Job IDs are ULIDs: 26-character Crockford Base32 strings with a millisecond
// timestamp prefix, so they sort by submission time.

var (
	ulidMu  sync.Mutex
	lastTS  uint64
	lastSeq uint16
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// generateULID is safe for concurrent use. IDs generated within the same
// millisecond differ in their sequence bytes.
func generateULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	ts := uint64(time.Now().UnixMilli())
	if ts == lastTS {
		lastSeq++
	} else {
		lastTS = ts
		lastSeq = 0
	}

	var b [16]byte
	// 48-bit big-endian timestamp, then the sequence, then randomness.
	var tsb [8]byte
	binary.BigEndian.PutUint64(tsb[:], ts)
	copy(b[:6], tsb[2:])
	rand.Read(b[8:])
	binary.BigEndian.PutUint16(b[6:8], lastSeq)

	return encodeULID(b)
}

// encodeULID writes 128 bits as 26 base32 digits. The first digit carries
// only the top 3 bits, so the value is treated as if left-padded to 130 bits.
func encodeULID(b [16]byte) string {
	var out [26]byte
	var acc uint32
	bits := 2 // padding bits
	i := 0
	for _, v := range b {
		acc = acc<<8 | uint32(v)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[i] = crockford[(acc>>uint(bits))&31]
			i++
		}
	}
	return string(out[:])
}
