package netsim

// rng.go holds the random number sources the delay and loss generators draw from.
// Every generator takes its own source, so that changing how one component
// consumes random numbers does not perturb the samples seen by another.

import (
	"encoding/binary"
	"io"

	"github.com/glycerine/blake3"
	"github.com/iti/rngstream"
)

// RandSource produces uniformly distributed samples on [0,1).
// *rngstream.RngStream satisfies it, as does *SeededStream.
type RandSource interface {
	RandU01() float64
}

// CreateNamedStream returns the next stream from the rngstream package's family of
// streams.  Streams are handed out in creation order from the package seed.
func CreateNamedStream(name string) RandSource {
	return rngstream.New(name)
}

// SeededStream is a deterministic stream fully determined by a 64-bit seed and a name.
// It reads sequentially from the output of a blake3 hasher keyed with the seed,
// into which the name has been written.  It is not goroutine safe.
type SeededStream struct {
	seed uint64
	name string
	xof  io.Reader
	buf  [8]byte
}

// CreateSeededStream is a constructor.  Streams with the same seed and name produce
// the same sequence; streams that differ in either are independent.
func CreateSeededStream(seed uint64, name string) *SeededStream {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	hasher := blake3.New(64, key[:])
	hasher.Write([]byte(name))

	ss := new(SeededStream)
	ss.seed = seed
	ss.name = name
	ss.xof = hasher.XOF()
	return ss
}

// Seed returns the seed the stream was created with
func (ss *SeededStream) Seed() uint64 {
	return ss.seed
}

// Name returns the stream's name
func (ss *SeededStream) Name() string {
	return ss.name
}

// Uint64 returns the next 64 bits of the stream.  It satisfies math/rand/v2's Source interface.
func (ss *SeededStream) Uint64() uint64 {
	n, err := io.ReadFull(ss.xof, ss.buf[:])
	if err != nil || n != len(ss.buf) {
		// the XOF output is effectively unbounded
		panic("short read from seeded stream")
	}
	return binary.LittleEndian.Uint64(ss.buf[:])
}

// RandU01 returns a sample on [0,1) built from the top 53 bits of the next Uint64
func (ss *SeededStream) RandU01() float64 {
	return float64(ss.Uint64()>>11) / (1 << 53)
}
