package chat

// FrameKind distinguishes frames a session can use from those it skips.
type FrameKind int

// Frame kinds.
const (
	FrameText FrameKind = iota
	FrameBinary
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one inbound message from the peer.
type Frame struct {
	Kind FrameKind
	Text string
}

// Stream is an accepted, bidirectional text-frame connection.
//
// ReadFrame is called from one goroutine at a time and WriteText from one
// goroutine at a time. Close may be called concurrently with both, more than
// once, and must unblock a pending ReadFrame or WriteText.
type Stream interface {
	ReadFrame() (Frame, error)
	WriteText(text string) error
	Close() error
}
