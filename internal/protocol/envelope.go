// Package protocol implements the frame envelope wire format shared by the
// WebSocket and UDP transports, plus the UDP chunking codec.
//
// Two framings carry the same logical envelope: a length-prefixed binary
// layout (preferred) and a legacy base64 JSON object kept for older clients.
package protocol

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxFieldLen bounds the token, session id and format fields on the wire.
// Each is prefixed by a single length byte.
const MaxFieldLen = 255

// ErrMalformedEnvelope is returned for any envelope whose declared lengths
// run past the buffer end or whose JSON form does not parse.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// ============================================================================
// FRAME ENVELOPE
// ============================================================================

// Envelope is a single in-flight frame from a vision worker. It is built on
// receipt and freed after the response is emitted; it is never persisted.
type Envelope struct {
	// Token is the opaque bearer token carried on every frame.
	Token string

	// SessionID is the client-chosen stream identifier, stable per session.
	SessionID string

	// FrameSeq is the client's monotonic frame sequence number.
	FrameSeq uint64

	// Width and Height describe the image in pixels. Both must be positive.
	Width  int32
	Height int32

	// Format is a short tag such as "jpeg", "rgba" or "grayscale".
	Format string

	// Image is the opaque payload; its length is implicit from the envelope.
	Image []byte
}

// DecodeEnvelope parses either framing. The legacy JSON framing is detected
// by its first byte '{'; everything else is treated as binary.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, ErrMalformedEnvelope
	}
	if data[0] == '{' {
		return decodeJSONEnvelope(data)
	}
	return decodeBinaryEnvelope(data)
}

// decodeBinaryEnvelope parses the binary layout:
//
//	[tokenLen:u8][token][sessionIdLen:u8][sessionId]
//	[frameSeq:u64 BE][width:i32 BE][height:i32 BE]
//	[formatLen:u8][format][imageBytes:rest]
func decodeBinaryEnvelope(data []byte) (*Envelope, error) {
	env := &Envelope{}
	off := 0

	readString := func() (string, bool) {
		if off >= len(data) {
			return "", false
		}
		n := int(data[off])
		off++
		if off+n > len(data) {
			return "", false
		}
		s := string(data[off : off+n])
		off += n
		return s, true
	}

	var ok bool
	if env.Token, ok = readString(); !ok {
		return nil, ErrMalformedEnvelope
	}
	if env.SessionID, ok = readString(); !ok {
		return nil, ErrMalformedEnvelope
	}

	if off+16 > len(data) {
		return nil, ErrMalformedEnvelope
	}
	env.FrameSeq = binary.BigEndian.Uint64(data[off:])
	off += 8
	env.Width = int32(binary.BigEndian.Uint32(data[off:]))
	off += 4
	env.Height = int32(binary.BigEndian.Uint32(data[off:]))
	off += 4

	if env.Format, ok = readString(); !ok {
		return nil, ErrMalformedEnvelope
	}

	env.Image = make([]byte, len(data)-off)
	copy(env.Image, data[off:])
	return env, nil
}

// jsonEnvelope is the legacy framing still emitted by older clients.
type jsonEnvelope struct {
	Token    string `json:"token"`
	ID       string `json:"id"`
	FrameSeq uint64 `json:"frame_sequence"`
	Width    int32  `json:"width"`
	Height   int32  `json:"height"`
	Format   string `json:"format"`
	Data     string `json:"data"` // base64-encoded image bytes
}

func decodeJSONEnvelope(data []byte) (*Envelope, error) {
	var je jsonEnvelope
	if err := json.Unmarshal(data, &je); err != nil {
		return nil, ErrMalformedEnvelope
	}
	img, err := base64.StdEncoding.DecodeString(je.Data)
	if err != nil {
		return nil, ErrMalformedEnvelope
	}
	return &Envelope{
		Token:     je.Token,
		SessionID: je.ID,
		FrameSeq:  je.FrameSeq,
		Width:     je.Width,
		Height:    je.Height,
		Format:    je.Format,
		Image:     img,
	}, nil
}

// Marshal serializes the envelope in the binary framing. Decoding the result
// yields a field-identical envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	for _, f := range []string{e.Token, e.SessionID, e.Format} {
		if len(f) > MaxFieldLen {
			return nil, fmt.Errorf("envelope field exceeds %d bytes", MaxFieldLen)
		}
	}

	size := 3 + len(e.Token) + len(e.SessionID) + len(e.Format) + 16 + len(e.Image)
	buf := make([]byte, 0, size)

	writeString := func(s string) {
		buf = append(buf, byte(len(s)))
		buf = append(buf, s...)
	}

	writeString(e.Token)
	writeString(e.SessionID)
	buf = binary.BigEndian.AppendUint64(buf, e.FrameSeq)
	buf = binary.BigEndian.AppendUint32(buf, uint32(e.Width))
	buf = binary.BigEndian.AppendUint32(buf, uint32(e.Height))
	writeString(e.Format)
	buf = append(buf, e.Image...)

	return buf, nil
}

// Channels derives the channel count the inference service expects from the
// format tag.
func (e *Envelope) Channels() int32 {
	switch e.Format {
	case "rgba":
		return 4
	case "grayscale":
		return 1
	default:
		return 3
	}
}

// ============================================================================
// RESPONSE FRAMING
// ============================================================================

// BBox is a detection bounding box in normalized coordinates. Zero values are
// meaningful and are always serialized.
type BBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Detection is a single detected object.
type Detection struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// AIResults carries the ordered detection list. Detections is never nil on
// the wire: an empty result serializes as [].
type AIResults struct {
	Detections []Detection `json:"detections"`
}

// FrameResponse is the JSON reply for one frame, on both transports. No field
// uses omitempty; clients depend on zero-valued keys being present.
type FrameResponse struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	FrameID        string    `json:"frame_id"`
	FrameSequence  uint64    `json:"frame_sequence"`
	AIResults      AIResults `json:"ai_results"`
	OriginalWidth  int32     `json:"original_width"`
	OriginalHeight int32     `json:"original_height"`
}

// EncodeResponse marshals the response, normalizing a nil detection slice to
// an empty array first.
func EncodeResponse(r *FrameResponse) []byte {
	if r.AIResults.Detections == nil {
		r.AIResults.Detections = []Detection{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		// The response struct contains only marshalable fields; reaching
		// this indicates a programmer error.
		panic(fmt.Sprintf("protocol: encode response: %v", err))
	}
	return b
}
