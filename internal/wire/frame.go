package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"fortio.org/safecast"
	"github.com/Masterminds/semver/v3"
	"google.golang.org/protobuf/encoding/protowire"

	"symtrace/internal/schema"
)

// ProtocolVersion is written into every stream header.
const ProtocolVersion = "1.0.0"

// compatibleVersions is the range of header versions this package can read.
const compatibleVersions = "^1.0.0"

// Magic prefixes the stream form.
var Magic = []byte("SYMT")

// Form identifies how a trace is laid out on the wire.
type Form uint8

const (
	FormContainer Form = iota // single OperationTrace message
	FormStream                // magic + header frame + event frames
)

func (f Form) String() string {
	switch f {
	case FormContainer:
		return "container"
	case FormStream:
		return "stream"
	default:
		return "unknown"
	}
}

// ParseForm converts a form name into a Form.
func ParseForm(s string) (Form, error) {
	switch s {
	case "container":
		return FormContainer, nil
	case "stream":
		return FormStream, nil
	default:
		return FormContainer, fmt.Errorf("invalid trace form: %q (expected: stream|container)", s)
	}
}

// Sniff reports the form of data.
func Sniff(data []byte) Form {
	if bytes.HasPrefix(data, Magic) {
		return FormStream
	}
	return FormContainer
}

// Header opens a stream. It carries the root initialization record.
type Header struct {
	ProtocolVersion string
	RootPathID      schema.PathID
	RootAssumptions schema.Assumptions
	Producer        string
}

// ReadFrame returns the message bytes of the frame at pos and the total number of
// bytes the frame occupies.
func ReadFrame(data []byte, pos int) ([]byte, int, error) {
	if pos < 0 || pos > len(data) {
		return nil, 0, errorf(pos, "position out of range")
	}
	size, n := protowire.ConsumeVarint(data[pos:])
	if n < 0 {
		perr := protowire.ParseError(n)
		if errors.Is(perr, io.ErrUnexpectedEOF) {
			return nil, 0, truncated(pos, "frame length")
		}
		return nil, 0, errorf(pos, "malformed frame length: %v", perr)
	}
	length, err := safecast.Conv[int](size)
	if err != nil {
		return nil, 0, errorf(pos, "frame length %d: %v", size, err)
	}
	start := pos + n
	if length > len(data)-start {
		return nil, 0, truncated(pos, fmt.Sprintf("frame (want %d bytes, have %d)", length, len(data)-start))
	}
	return data[start : start+length], n + length, nil
}

// DecodeEvent decodes the framed event at pos and returns it with the number of
// bytes consumed.
func DecodeEvent(data []byte, pos int) (schema.Event, int, error) {
	msg, n, err := ReadFrame(data, pos)
	if err != nil {
		return schema.Event{}, 0, err
	}
	ev, err := UnmarshalEvent(msg, pos+n-len(msg))
	if err != nil {
		return schema.Event{}, 0, err
	}
	return ev, n, nil
}

// AppendStreamHeader appends the magic bytes and the framed header.
func AppendStreamHeader(b []byte, h Header) []byte {
	if h.ProtocolVersion == "" {
		h.ProtocolVersion = ProtocolVersion
	}
	var msg []byte
	msg = appendString(msg, fieldHeaderVersion, h.ProtocolVersion)
	msg = appendPathID(msg, fieldHeaderRootPathID, h.RootPathID)
	msg = appendAssumptions(msg, fieldHeaderRootAssumptions, h.RootAssumptions)
	msg = appendString(msg, fieldHeaderProducer, h.Producer)
	b = append(b, Magic...)
	return protowire.AppendBytes(b, msg)
}

// ReadStreamHeader parses the magic bytes and header frame at the start of data.
// It returns the header and the offset of the first event frame.
func ReadStreamHeader(data []byte) (Header, int, error) {
	var h Header
	if len(data) < len(Magic) {
		if bytes.HasPrefix(Magic, data) {
			return h, 0, truncated(0, "stream magic")
		}
		return h, 0, errorf(0, "missing stream magic")
	}
	if !bytes.Equal(data[:len(Magic)], Magic) {
		return h, 0, errorf(0, "missing stream magic")
	}
	msg, n, err := ReadFrame(data, len(Magic))
	if err != nil {
		return h, 0, err
	}
	base := len(Magic) + n - len(msg)
	err = walk(msg, base, func(f field) error {
		var err error
		switch f.num {
		case fieldHeaderVersion:
			h.ProtocolVersion, err = decodeString(f)
		case fieldHeaderRootPathID:
			h.RootPathID, err = decodePathID(f)
		case fieldHeaderRootAssumptions:
			h.RootAssumptions, err = decodeAssumptions(f)
		case fieldHeaderProducer:
			h.Producer, err = decodeString(f)
		}
		return err
	})
	if err != nil {
		return h, 0, err
	}
	if err := checkVersion(h.ProtocolVersion); err != nil {
		return h, 0, at(base, err)
	}
	return h, len(Magic) + n, nil
}

func checkVersion(v string) error {
	if v == "" {
		return fmt.Errorf("stream header has no protocol version")
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid protocol version %q: %w", v, err)
	}
	c, err := semver.NewConstraint(compatibleVersions)
	if err != nil {
		return err
	}
	if !c.Check(ver) {
		return fmt.Errorf("unsupported protocol version %s (want %s)", v, compatibleVersions)
	}
	return nil
}

// EncodeStream encodes t in stream form.
func EncodeStream(t *schema.OperationTrace, producer string) ([]byte, error) {
	b := AppendStreamHeader(nil, Header{
		RootPathID:      t.RootPathID,
		RootAssumptions: t.RootAssumptions,
		Producer:        producer,
	})
	for i, ev := range t.Events {
		var err error
		b, err = AppendFrame(b, ev)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return b, nil
}

// EncodeTrace encodes t in container form.
func EncodeTrace(t *schema.OperationTrace) ([]byte, error) {
	var b []byte
	for i, ev := range t.Events {
		msg, err := appendEvent(nil, ev)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		b = protowire.AppendTag(b, fieldTraceEvents, protowire.BytesType)
		b = protowire.AppendBytes(b, msg)
	}
	b = appendPathID(b, fieldTraceRootPathID, t.RootPathID)
	b = appendAssumptions(b, fieldTraceRootAssumptions, t.RootAssumptions)
	return b, nil
}

// Encode encodes t in the requested form.
func Encode(t *schema.OperationTrace, form Form, producer string) ([]byte, error) {
	if form == FormStream {
		return EncodeStream(t, producer)
	}
	return EncodeTrace(t)
}

// DecodeTrace decodes a container-form trace. On error the events decoded so far
// are returned with it.
func DecodeTrace(data []byte) (*schema.OperationTrace, error) {
	t := &schema.OperationTrace{}
	err := walk(data, 0, func(f field) error {
		var err error
		switch f.num {
		case fieldTraceEvents:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			var ev schema.Event
			ev, err = UnmarshalEvent(f.bytes, f.pos)
			if err != nil {
				return fmt.Errorf("event %d: %w", len(t.Events), err)
			}
			t.Events = append(t.Events, ev)
		case fieldTraceRootPathID:
			t.RootPathID, err = decodePathID(f)
		case fieldTraceRootAssumptions:
			t.RootAssumptions, err = decodeAssumptions(f)
		}
		return err
	})
	if err != nil {
		return t, err
	}
	return t, nil
}

// DecodeStream decodes a complete stream-form trace. On error the events decoded
// so far are returned with it.
func DecodeStream(data []byte) (*schema.OperationTrace, error) {
	h, pos, err := ReadStreamHeader(data)
	if err != nil {
		return nil, err
	}
	t := &schema.OperationTrace{RootPathID: h.RootPathID, RootAssumptions: h.RootAssumptions}
	for pos < len(data) {
		ev, n, err := DecodeEvent(data, pos)
		if err != nil {
			return t, err
		}
		t.Events = append(t.Events, ev)
		pos += n
	}
	return t, nil
}

// Decode decodes data in whichever form it is stored.
func Decode(data []byte) (*schema.OperationTrace, error) {
	if Sniff(data) == FormStream {
		return DecodeStream(data)
	}
	return DecodeTrace(data)
}
