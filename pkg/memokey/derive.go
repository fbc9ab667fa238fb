package memokey

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cuemby/mpr/pkg/memokey/humanencode"
	"github.com/cuemby/mpr/pkg/serializer"
	"github.com/cuemby/mpr/pkg/types"
)

// MemospaceHandler rewrites a raw pipeline id before it becomes part of a
// memo URI's path — e.g. collapsing a per-invocation UUID suffix so
// repeated runs of the same logical pipeline share a memospace.
type MemospaceHandler struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// PipelineMemospaceHandlers is applied in order; the first pattern that
// matches wins. Declared as a package variable (not a registry) because,
// unlike function registrations, these are few, operator-tunable, and
// don't need startup-time duplicate detection.
var PipelineMemospaceHandlers []MemospaceHandler

func applyMemospaceHandlers(pipelineID string) string {
	for _, h := range PipelineMemospaceHandlers {
		if h.Pattern.MatchString(pipelineID) {
			return h.Pattern.ReplaceAllString(pipelineID, h.Replacement)
		}
	}
	return pipelineID
}

// DeriveInput bundles everything Derive needs to compute a memo URI.
type DeriveInput struct {
	RunnerPrefix string
	PipelineID   string
	FuncID       string
	EncodedArgs  [][]byte
	EncodedKwargs map[string][]byte
	Calls        []types.CallRef
}

// Derive implements the memo key algorithm: resolve the function's logic
// key from the registry, fold any sub-call logic keys into the hash input,
// canonicalize the argument bytes, hash, human-encode, and assemble the
// final memo URI path.
//
// Layout: <runner_prefix>/<memospace>/<func_id>/<logic_key>/<human_hash>
func Derive(in DeriveInput) (types.MemoURI, *types.Thunk, error) {
	reg, ok := Lookup(in.FuncID)
	if !ok {
		return "", nil, fmt.Errorf("memokey: no registration for func id %q", in.FuncID)
	}

	argumentBytes, err := serializer.CanonicalizeArgumentBytes(in.EncodedArgs, in.EncodedKwargs)
	if err != nil {
		return "", nil, err
	}

	hashInput := append([]byte(nil), argumentBytes...)
	for _, call := range in.Calls {
		hashInput = append(hashInput, []byte(call.ArgName+"|"+call.FuncID+"|"+call.LogicKey)...)
	}

	contentHash := serializer.ContentHash(hashInput)
	humanHash := humanencode.Encode(mustHexDecode(contentHash))

	memospace := applyMemospaceHandlers(in.PipelineID)
	runnerPrefix := in.RunnerPrefix
	if runnerPrefix == "" {
		runnerPrefix = "mops2-mpf"
	}

	path := strings.Join([]string{runnerPrefix, memospace, in.FuncID, reg.LogicKey, humanHash}, "/")

	thunk := &types.Thunk{
		FuncRef:       in.FuncID,
		LogicKey:      reg.LogicKey,
		Kwargs:        in.EncodedKwargs,
		Args:          in.EncodedArgs,
		ArgumentBytes: argumentBytes,
		Calls:         in.Calls,
		PipelineID:    in.PipelineID,
	}

	return types.MemoURI(path), thunk, nil
}

func mustHexDecode(s string) []byte {
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi := hexVal(s[i*2])
		lo := hexVal(s[i*2+1])
		out[i] = hi<<4 | lo
	}
	return out
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
