package summary

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mpr/pkg/events"
	"github.com/cuemby/mpr/pkg/types"
)

func TestLoggerAppendsPublishedEventsToJSONL(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	dir := t.TempDir()
	logger, err := New(Config{Dir: dir, RunSuffix: "test"}, broker)
	require.NoError(t, err)
	logger.Start()

	broker.Publish(&events.Event{
		Type:    events.EventCallResolved,
		MemoURI: types.MemoURI("mops2-mpf/foo"),
		Message: "ok",
	})

	require.Eventually(t, func() bool {
		info, err := os.Stat(filepath.Join(logger.RunDir(), "calls.jsonl"))
		return err == nil && info.Size() > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, logger.Close())

	f, err := os.Open(filepath.Join(logger.RunDir(), "calls.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var rec Record
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
	assert.Equal(t, "mops2-mpf/foo", rec.MemoURI)
	assert.Equal(t, string(events.EventCallResolved), rec.Type)
}

func TestNewNamesRunDirWithSuffix(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	dir := t.TempDir()
	logger, err := New(Config{Dir: dir, RunSuffix: "able-badge"}, broker)
	require.NoError(t, err)
	defer logger.Close()

	assert.Contains(t, logger.RunDir(), "-able-badge")
}
