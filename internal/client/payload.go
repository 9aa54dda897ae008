package client

import (
	"errors"
	"io"
	"math/rand/v2"
	"sync"
)

const payloadBlockSize = 1 << 20

// payloadBlock is filled once with random bytes and shared read-only by all
// payloads.
var payloadBlock = sync.OnceValue(func() []byte {
	b := make([]byte, payloadBlockSize)
	rng := rand.New(rand.NewPCG(0x5eed, 0xb10c))
	for i := 0; i+8 <= len(b); i += 8 {
		v := rng.Uint64()
		for j := 0; j < 8; j++ {
			b[i+j] = byte(v >> (8 * j))
		}
	}
	return b
})

// Payload is a seekable stream of size pseudo-random bytes. Object bodies
// are generated on the fly rather than held in memory.
type Payload struct {
	size int64
	off  int64
}

// NewPayload returns a payload of size bytes.
func NewPayload(size int64) *Payload {
	if size < 0 {
		size = 0
	}
	return &Payload{size: size}
}

// Len returns the number of unread bytes.
func (p *Payload) Len() int64 { return p.size - p.off }

// Read implements io.Reader.
func (p *Payload) Read(b []byte) (int, error) {
	if p.off >= p.size {
		return 0, io.EOF
	}
	block := payloadBlock()
	n := 0
	for n < len(b) && p.off < p.size {
		start := int(p.off % payloadBlockSize)
		chunk := block[start:]
		if rem := p.size - p.off; int64(len(chunk)) > rem {
			chunk = chunk[:rem]
		}
		c := copy(b[n:], chunk)
		n += c
		p.off += int64(c)
	}
	return n, nil
}

// Seek implements io.Seeker.
func (p *Payload) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = p.off + offset
	case io.SeekEnd:
		abs = p.size + offset
	default:
		return 0, errors.New("payload: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("payload: negative position")
	}
	p.off = abs
	return abs, nil
}
