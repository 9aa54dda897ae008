package client

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Throttle caps the combined payload bandwidth of a client. A nil Throttle
// does not limit anything.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle returns a throttle allowing bytesPerSecond, or nil when
// bytesPerSecond is not positive.
func NewThrottle(bytesPerSecond int64) *Throttle {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond)),
	}
}

// Reader wraps r so that reads wait for bandwidth. Seeking is passed through
// when r supports it.
func (t *Throttle) Reader(ctx context.Context, r io.Reader) io.Reader {
	if t == nil {
		return r
	}
	tr := &throttledReader{reader: r, limiter: t.limiter, ctx: ctx}
	if s, ok := r.(io.Seeker); ok {
		return &throttledReadSeeker{throttledReader: tr, seeker: s}
	}
	return tr
}

type throttledReader struct {
	reader  io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (tr *throttledReader) Read(p []byte) (int, error) {
	// WaitN fails for n above the burst.
	if burst := tr.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := tr.reader.Read(p)
	if n > 0 {
		if waitErr := tr.limiter.WaitN(tr.ctx, n); waitErr != nil {
			return 0, waitErr
		}
	}
	return n, err
}

type throttledReadSeeker struct {
	*throttledReader
	seeker io.Seeker
}

func (ts *throttledReadSeeker) Seek(offset int64, whence int) (int64, error) {
	return ts.seeker.Seek(offset, whence)
}
