package sales

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"
)

// NumberSource issues human-readable sale numbers.
type NumberSource interface {
	Next(now time.Time) string
}

// SequenceNumbers issues numbers of the form SALE-YYYYMMDD-XXXXXXXX. The
// suffix is a bijective scramble of a per-process counter under a random key,
// so one process never repeats a suffix within 2^32 sales. Collisions across
// processes are caught by the unique index on sale_number.
type SequenceNumbers struct {
	key     uint32
	counter atomic.Uint32
}

// NewSequenceNumbers seeds a SequenceNumbers from crypto/rand.
func NewSequenceNumbers() *SequenceNumbers {
	var b [8]byte
	_, _ = rand.Read(b[:])
	s := &SequenceNumbers{key: binary.BigEndian.Uint32(b[:4])}
	s.counter.Store(binary.BigEndian.Uint32(b[4:]))
	return s
}

// Next returns the next sale number for the day of now.
func (s *SequenceNumbers) Next(now time.Time) string {
	n := s.counter.Add(1)
	// Multiplication by an odd constant is a permutation of uint32.
	suffix := (n * 0x9E3779B1) ^ s.key
	return fmt.Sprintf("SALE-%s-%08X", now.Format("20060102"), suffix)
}
