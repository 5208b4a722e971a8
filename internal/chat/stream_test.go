package chat

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeStream is an in-memory Stream. Frames pushed with send are returned by
// ReadFrame; hangup makes ReadFrame report a peer close; failWrites makes
// every later WriteText fail.
type fakeStream struct {
	in     chan Frame
	out    chan string
	closed chan struct{}

	closeOnce  sync.Once
	closeCalls atomic.Int32
	failWrites atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		in:     make(chan Frame, 16),
		out:    make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeStream) ReadFrame() (Frame, error) {
	select {
	case frame, ok := <-f.in:
		if !ok {
			return Frame{}, errors.Wrap(ErrStreamClosed, "peer hung up")
		}
		return frame, nil
	case <-f.closed:
		return Frame{}, errors.Wrap(ErrStreamClosed, "closed locally")
	}
}

func (f *fakeStream) WriteText(text string) error {
	if f.failWrites.Load() {
		return errBrokenPipe
	}
	select {
	case <-f.closed:
		return errors.Wrap(ErrStreamClosed, "closed locally")
	case f.out <- text:
		return nil
	}
}

func (f *fakeStream) Close() error {
	f.closeCalls.Add(1)
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeStream) send(text string) { f.in <- Frame{Kind: FrameText, Text: text} }

func (f *fakeStream) sendBinary() { f.in <- Frame{Kind: FrameBinary} }

func (f *fakeStream) hangup() { close(f.in) }

func (f *fakeStream) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// chattyStream claims name, then returns the text frame "x" on every read,
// even after Close. Writes fail once okWrites have succeeded.
type chattyStream struct {
	name     string
	okWrites int32

	named  atomic.Bool
	writes atomic.Int32
}

func (c *chattyStream) ReadFrame() (Frame, error) {
	if c.named.CompareAndSwap(false, true) {
		return Frame{Kind: FrameText, Text: c.name}, nil
	}
	return Frame{Kind: FrameText, Text: "x"}, nil
}

func (c *chattyStream) WriteText(string) error {
	if c.writes.Add(1) > c.okWrites {
		return errBrokenPipe
	}
	return nil
}

func (c *chattyStream) Close() error { return nil }
