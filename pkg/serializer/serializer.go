package serializer

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/cuemby/mpr/pkg/types"
)

// envelopeJSON is the codec used for the envelope shell: protocol version,
// metadata, sources. It stays human-inspectable on disk.
var envelopeJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeEnvelope marshals env for storage, stamping the current protocol
// version.
func EncodeEnvelope(env *types.Envelope) ([]byte, error) {
	env.ProtocolVersion = types.ProtocolVersion
	data, err := envelopeJSON.Marshal(env)
	if err != nil {
		return nil, &types.SerializationError{Path: "envelope", Err: err}
	}
	return data, nil
}

// DecodeEnvelope unmarshals data into an Envelope, refusing to interpret
// bytes written by an unrecognized protocol version.
func DecodeEnvelope(data []byte) (*types.Envelope, error) {
	var env types.Envelope
	if err := envelopeJSON.Unmarshal(data, &env); err != nil {
		return nil, &types.SerializationError{Path: "envelope", Err: err}
	}
	if env.ProtocolVersion != types.ProtocolVersion {
		return nil, &types.SerializationError{
			Path: "envelope.protocol_version",
			Err:  fmt.Errorf("unsupported protocol version %d (expected %d)", env.ProtocolVersion, types.ProtocolVersion),
		}
	}
	return &env, nil
}

// EncodeValue gob-encodes a single argument or return value. gob is used
// here rather than json-iterator because its deterministic field encoding
// matters once the bytes are about to be folded into a content hash.
func EncodeValue(path string, v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, &types.SerializationError{Path: path, Err: err}
	}
	return buf.Bytes(), nil
}

// DecodeValue gob-decodes a single encoded argument or return value into
// target, which must be a pointer.
func DecodeValue(path string, data []byte, target any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(target); err != nil {
		return &types.SerializationError{Path: path, Err: err}
	}
	return nil
}

// kwPair is an encoded (key, value) pair pending canonical ordering.
type kwPair struct {
	key   []byte
	value []byte
}

// CanonicalizeArgumentBytes produces the deterministic byte sequence a
// memo URI is hashed from: positional args in call order, followed by
// keyword args sorted by their encoded (key, value) bytes — never by
// insertion order, since map iteration in Go (and dict literal order in
// the original caller's language) is not guaranteed stable.
func CanonicalizeArgumentBytes(encodedArgs [][]byte, encodedKwargs map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer

	for i, arg := range encodedArgs {
		if err := writeLengthPrefixed(&buf, arg); err != nil {
			return nil, &types.SerializationError{Path: fmt.Sprintf("args[%d]", i), Err: err}
		}
	}

	pairs := make([]kwPair, 0, len(encodedKwargs))
	for k, v := range encodedKwargs {
		keyBytes, err := EncodeValue("kwargs."+k, k)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, kwPair{key: keyBytes, value: v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if c := bytes.Compare(pairs[i].key, pairs[j].key); c != 0 {
			return c < 0
		}
		return bytes.Compare(pairs[i].value, pairs[j].value) < 0
	})
	for _, p := range pairs {
		if err := writeLengthPrefixed(&buf, p.key); err != nil {
			return nil, &types.SerializationError{Path: "kwargs", Err: err}
		}
		if err := writeLengthPrefixed(&buf, p.value); err != nil {
			return nil, &types.SerializationError{Path: "kwargs", Err: err}
		}
	}

	return buf.Bytes(), nil
}

func writeLengthPrefixed(buf *bytes.Buffer, data []byte) error {
	var lenBuf [8]byte
	for i := 0; i < 8; i++ {
		lenBuf[i] = byte(len(data) >> (8 * (7 - i)))
	}
	if _, err := buf.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := buf.Write(data)
	return err
}

// ContentHash returns the lowercase hex SHA-256 digest of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
