package memokey

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mpr/pkg/serializer"
	"github.com/cuemby/mpr/pkg/types"
)

func TestRegisterLookupAndFreeze(t *testing.T) {
	t.Cleanup(reset)

	Register(Registration{FuncID: "pipelines.ingest--normalize", LogicKey: "normalize-v3"})
	reg, ok := Lookup("pipelines.ingest--normalize")
	require.True(t, ok)
	assert.Equal(t, "normalize-v3", reg.LogicKey)

	_, ok = Lookup("does-not-exist")
	assert.False(t, ok)

	Freeze()
	assert.Panics(t, func() {
		Register(Registration{FuncID: "too-late"})
	})
}

func TestRegisterDefaultsLogicKeyToFuncID(t *testing.T) {
	t.Cleanup(reset)

	Register(Registration{FuncID: "pipelines.ingest--passthrough"})
	reg, ok := Lookup("pipelines.ingest--passthrough")
	require.True(t, ok)
	assert.Equal(t, "pipelines.ingest--passthrough", reg.LogicKey)
}

func TestRegisterPanicsOnDuplicateFuncID(t *testing.T) {
	t.Cleanup(reset)

	Register(Registration{FuncID: "dup"})
	assert.Panics(t, func() {
		Register(Registration{FuncID: "dup"})
	})
}

func TestDeriveIsDeterministic(t *testing.T) {
	t.Cleanup(reset)
	Register(Registration{FuncID: "pipelines.ingest--normalize", LogicKey: "normalize-v3"})

	arg, err := serializer.EncodeValue("args[0]", "input.csv")
	require.NoError(t, err)

	in := DeriveInput{
		RunnerPrefix: "mops2-mpf",
		PipelineID:   "batch-2026-07-30",
		FuncID:       "pipelines.ingest--normalize",
		EncodedArgs:  [][]byte{arg},
	}

	uri1, thunk1, err := Derive(in)
	require.NoError(t, err)
	uri2, thunk2, err := Derive(in)
	require.NoError(t, err)

	assert.Equal(t, uri1, uri2)
	assert.Equal(t, thunk1.ArgumentBytes, thunk2.ArgumentBytes)
	assert.Contains(t, string(uri1), "mops2-mpf/batch-2026-07-30/pipelines.ingest--normalize/normalize-v3/")
}

func TestDeriveDiffersOnSubCallLogicKey(t *testing.T) {
	t.Cleanup(reset)
	Register(Registration{FuncID: "pipelines.ingest--normalize", LogicKey: "normalize-v3"})

	arg, err := serializer.EncodeValue("args[0]", "input.csv")
	require.NoError(t, err)

	base := DeriveInput{
		RunnerPrefix: "mops2-mpf",
		PipelineID:   "batch",
		FuncID:       "pipelines.ingest--normalize",
		EncodedArgs:  [][]byte{arg},
	}

	withCall := base
	withCall.Calls = []types.CallRef{{ArgName: "helper", FuncID: "pipelines.util--helper", LogicKey: "helper-v1"}}

	uri1, _, err := Derive(base)
	require.NoError(t, err)
	uri2, _, err := Derive(withCall)
	require.NoError(t, err)

	assert.NotEqual(t, uri1, uri2)
}

func TestDeriveErrorsOnUnregisteredFunc(t *testing.T) {
	t.Cleanup(reset)
	_, _, err := Derive(DeriveInput{FuncID: "unregistered"})
	assert.Error(t, err)
}

func TestApplyMemospaceHandlersRewritesPipelineID(t *testing.T) {
	t.Cleanup(func() { PipelineMemospaceHandlers = nil })
	PipelineMemospaceHandlers = []MemospaceHandler{
		{Pattern: regexp.MustCompile(`^batch-\d{4}-\d{2}-\d{2}-run\d+$`), Replacement: "batch-shared"},
	}

	assert.Equal(t, "batch-shared", applyMemospaceHandlers("batch-2026-07-30-run42"))
	assert.Equal(t, "unrelated", applyMemospaceHandlers("unrelated"))
}
