package serializer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mpr/pkg/types"
)

func TestEncodeDecodeEnvelopeRoundTrip(t *testing.T) {
	env := &types.Envelope{
		Kind:    types.EnvelopeKindOK,
		Payload: []byte("result-bytes"),
		Metadata: types.ResultMetadata{
			RunID:      "2607301530-amber-otter",
			StartedAt:  time.Now().Add(-time.Second),
			FinishedAt: time.Now(),
			ExitStatus: "ok",
		},
	}

	data, err := EncodeEnvelope(env)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.Payload, decoded.Payload)
	assert.Equal(t, env.Metadata.RunID, decoded.Metadata.RunID)
	assert.Equal(t, types.ProtocolVersion, decoded.ProtocolVersion)
}

func TestDecodeEnvelopeRejectsUnknownProtocolVersion(t *testing.T) {
	data := []byte(`{"protocol_version":9999,"kind":"ok"}`)
	_, err := DecodeEnvelope(data)
	require.Error(t, err)

	var serErr *types.SerializationError
	assert.ErrorAs(t, err, &serErr)
}

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	type payload struct {
		Name  string
		Count int
	}
	original := payload{Name: "ingest", Count: 7}

	data, err := EncodeValue("args[0]", original)
	require.NoError(t, err)

	var decoded payload
	require.NoError(t, DecodeValue("args[0]", data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestCanonicalizeArgumentBytesIsOrderIndependentOverKwargs(t *testing.T) {
	a, err := EncodeValue("kwargs.a", "value-a")
	require.NoError(t, err)
	b, err := EncodeValue("kwargs.b", "value-b")
	require.NoError(t, err)

	first, err := CanonicalizeArgumentBytes(nil, map[string][]byte{"a": a, "b": b})
	require.NoError(t, err)
	second, err := CanonicalizeArgumentBytes(nil, map[string][]byte{"b": b, "a": a})
	require.NoError(t, err)

	assert.Equal(t, first, second, "canonical bytes must not depend on map iteration order")
}

func TestCanonicalizeArgumentBytesDiffersOnValueChange(t *testing.T) {
	a1, err := EncodeValue("args[0]", "v1")
	require.NoError(t, err)
	a2, err := EncodeValue("args[0]", "v2")
	require.NoError(t, err)

	first, err := CanonicalizeArgumentBytes([][]byte{a1}, nil)
	require.NoError(t, err)
	second, err := CanonicalizeArgumentBytes([][]byte{a2}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestContentHashIsDeterministic(t *testing.T) {
	data := []byte("same-bytes")
	assert.Equal(t, ContentHash(data), ContentHash(data))
	assert.NotEqual(t, ContentHash(data), ContentHash([]byte("other-bytes")))
}

func TestRedirectRecognizesLargeAndSharedObjects(t *testing.T) {
	isRef, ref := Redirect(types.LargeObjectRef{LogicalName: "frame.parquet"})
	require.True(t, isRef)
	assert.Equal(t, "frame.parquet", ref.(types.LargeObjectRef).LogicalName)

	isRef, ref = Redirect(&types.SharedObjectRef{Name: "model.pkl"})
	require.True(t, isRef)
	assert.Equal(t, "model.pkl", ref.(types.SharedObjectRef).Name)

	isRef, _ = Redirect("plain string")
	assert.False(t, isRef)
}
