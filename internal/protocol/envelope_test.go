package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_BinaryRoundTrip(t *testing.T) {
	env := &Envelope{
		Token:     "bearer-token-xyz",
		SessionID: "s1",
		FrameSeq:  42,
		Width:     640,
		Height:    360,
		Format:    "jpeg",
		Image:     bytes.Repeat([]byte{0xAB}, 1024),
	}

	wire, err := env.Marshal()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(wire)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)

	// encode ∘ decode must be identity on the wire bytes too
	rewire, err := decoded.Marshal()
	require.NoError(t, err)
	assert.Equal(t, wire, rewire)
}

func TestEnvelope_EmptyImageAndFields(t *testing.T) {
	env := &Envelope{Token: "", SessionID: "", Format: "", Image: []byte{}}
	wire, err := env.Marshal()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(wire)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	valid, err := (&Envelope{
		Token: "tok", SessionID: "s", FrameSeq: 1,
		Width: 10, Height: 10, Format: "jpeg", Image: []byte("img"),
	}).Marshal()
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":               {},
		"token runs past end": {0xFF, 0x01},
		"truncated integers":  valid[:12], // cut inside the seq/width/height block
		"only length byte":    {0x05},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope(data)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestDecodeEnvelope_JSONLegacy(t *testing.T) {
	img := []byte{1, 2, 3, 4}
	body, err := json.Marshal(map[string]interface{}{
		"token":          "tok",
		"id":             "session-9",
		"frame_sequence": 7,
		"width":          320,
		"height":         240,
		"format":         "rgba",
		"data":           base64.StdEncoding.EncodeToString(img),
	})
	require.NoError(t, err)

	env, err := DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, "tok", env.Token)
	assert.Equal(t, "session-9", env.SessionID)
	assert.Equal(t, uint64(7), env.FrameSeq)
	assert.Equal(t, int32(320), env.Width)
	assert.Equal(t, int32(240), env.Height)
	assert.Equal(t, img, env.Image)
}

func TestDecodeEnvelope_JSONBadBase64(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"token":"t","data":"!!not-base64!!"}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestChannels(t *testing.T) {
	assert.Equal(t, int32(4), (&Envelope{Format: "rgba"}).Channels())
	assert.Equal(t, int32(1), (&Envelope{Format: "grayscale"}).Channels())
	assert.Equal(t, int32(3), (&Envelope{Format: "jpeg"}).Channels())
	assert.Equal(t, int32(3), (&Envelope{Format: ""}).Channels())
}

func TestEncodeResponse_ZeroValuesPresent(t *testing.T) {
	resp := &FrameResponse{
		Success:       true,
		FrameSequence: 42,
		AIResults: AIResults{Detections: []Detection{
			{ClassName: "cucur", Confidence: 0, BBox: BBox{}},
		}},
	}
	out := string(EncodeResponse(resp))

	// Zero-valued numeric fields must serialize, never be omitted.
	assert.Contains(t, out, `"confidence":0`)
	assert.Contains(t, out, `"x_min":0`)
	assert.Contains(t, out, `"original_width":0`)
	assert.Contains(t, out, `"message":""`)
	assert.Contains(t, out, `"frame_sequence":42`)
}

func TestEncodeResponse_NilDetectionsBecomesEmptyArray(t *testing.T) {
	out := string(EncodeResponse(&FrameResponse{Success: false, Message: "malformed envelope"}))
	assert.Contains(t, out, `"detections":[]`)
	assert.NotContains(t, out, `"detections":null`)
}
