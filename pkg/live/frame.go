package live

import (
	"encoding/binary"
	stderrors "errors"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vango-dev/splitroute/internal/errors"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 6

	// MaxPayloadSize is the largest accepted payload.
	MaxPayloadSize = 4 << 20
)

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameHello    FrameType = 0x00 // Client → Server: session start
	FrameNavigate FrameType = 0x01 // Client → Server: navigation request
	FrameWelcome  FrameType = 0x10 // Server → Client: session accepted, first render
	FrameRender   FrameType = 0x11 // Server → Client: page render after navigation
	FrameLoading  FrameType = 0x12 // Server → Client: loading flag change
	FrameProgress FrameType = 0x13 // Server → Client: progress bar width
	FrameError    FrameType = 0x1F // Server → Client: error
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameHello:
		return "Hello"
	case FrameNavigate:
		return "Navigate"
	case FrameWelcome:
		return "Welcome"
	case FrameRender:
		return "Render"
	case FrameLoading:
		return "Loading"
	case FrameProgress:
		return "Progress"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Frame errors.
var (
	ErrFrameTooLarge    = stderrors.New("live: frame payload too large")
	ErrInvalidFrameType = stderrors.New("live: invalid frame type")
)

// Frame is one protocol message.
//
// Wire format (6 bytes header + msgpack payload):
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (4 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
type Frame struct {
	Type    FrameType
	Flags   uint8
	Payload []byte
}

// Encode encodes the frame to bytes including the header.
func (f *Frame) Encode() []byte {
	buf := make([]byte, FrameHeaderSize+len(f.Payload))
	buf[0] = byte(f.Type)
	buf[1] = f.Flags
	binary.BigEndian.PutUint32(buf[2:FrameHeaderSize], uint32(len(f.Payload)))
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf
}

// DecodeFrame decodes a frame from bytes.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	length := int(binary.BigEndian.Uint32(data[2:FrameHeaderSize]))
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	if len(data) < FrameHeaderSize+length {
		return nil, io.ErrUnexpectedEOF
	}

	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:FrameHeaderSize+length])
	return &Frame{
		Type:    FrameType(data[0]),
		Flags:   data[1],
		Payload: payload,
	}, nil
}

// NewFrame encodes v with msgpack into a frame of type ft.
func NewFrame(ft FrameType, v any) (*Frame, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	return &Frame{Type: ft, Payload: payload}, nil
}

// Decode unpacks the payload into v.
func (f *Frame) Decode(v any) error {
	if err := msgpack.Unmarshal(f.Payload, v); err != nil {
		return errors.New("E400").WithDetail(f.Type.String() + " payload").Wrap(err)
	}
	return nil
}

// Hello starts a session. Path is the browser's current URL (path, query
// and fragment); State is the store snapshot the page was rendered with.
type Hello struct {
	Path     string            `msgpack:"path"`
	Referrer string            `msgpack:"referrer,omitempty"`
	State    map[string][]byte `msgpack:"state,omitempty"`
}

// Navigation actions.
const (
	ActionPush    = "push"
	ActionReplace = "replace"
	ActionGo      = "go"
)

// Navigate asks the session to move through history.
type Navigate struct {
	Action string `msgpack:"action"`
	To     string `msgpack:"to,omitempty"`
	Delta  int    `msgpack:"delta,omitempty"`
}

// Render carries a rendered document.
type Render struct {
	URL      string   `msgpack:"url"`
	Action   string   `msgpack:"action,omitempty"`
	Title    string   `msgpack:"title"`
	Head     string   `msgpack:"head"`
	Body     string   `msgpack:"body"`
	BodyCls  string   `msgpack:"bodyClass,omitempty"`
	Progress string   `msgpack:"progress"`
	Loading  bool     `msgpack:"loading"`
	Status   int      `msgpack:"status"`
	Scripts  []string `msgpack:"scripts,omitempty"`
}

// Welcome answers Hello.
type Welcome struct {
	SessionID string `msgpack:"sessionId"`
	Render    Render `msgpack:"render"`
}

// Loading reports a loading flag change.
type Loading struct {
	Loading bool `msgpack:"loading"`
}

// Progress reports the progress bar width.
type Progress struct {
	Percent float64 `msgpack:"percent"`
}

// ErrorMessage reports a failure to the client.
type ErrorMessage struct {
	Code    string `msgpack:"code"`
	Message string `msgpack:"message"`
	Fatal   bool   `msgpack:"fatal,omitempty"`
}
