package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/cuemby/mpr/pkg/events"
	"github.com/cuemby/mpr/pkg/log"
)

// Record is one line of the JSONL call log.
type Record struct {
	Time     time.Time         `json:"time"`
	MemoURI  string            `json:"memo_uri"`
	Type     string            `json:"type"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Config controls where the log is written and whether failures are
// mirrored to Slack.
type Config struct {
	Dir          string
	RunSuffix    string // distinguishes concurrent processes sharing Dir
	SlackWebhook string
}

// Logger subscribes to a broker and appends every event it sees to a
// per-run JSONL file.
type Logger struct {
	cfg     Config
	broker  *events.Broker
	sub     events.Subscriber
	runDir  string
	file    *os.File
	writeMu sync.Mutex
	doneCh  chan struct{}
}

// New creates the run directory and opens calls.jsonl for append. Callers
// must call Start to begin consuming events, and Close when done.
func New(cfg Config, broker *events.Broker) (*Logger, error) {
	runDir := filepath.Join(cfg.Dir, runDirName(cfg.RunSuffix))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("summary: creating run dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(runDir, "calls.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("summary: opening calls.jsonl: %w", err)
	}

	return &Logger{
		cfg:    cfg,
		broker: broker,
		runDir: runDir,
		file:   f,
		doneCh: make(chan struct{}),
	}, nil
}

// RunDir returns the directory this run's log lives under.
func (l *Logger) RunDir() string { return l.runDir }

// Start subscribes to the broker and begins draining events into the log
// file in a background goroutine.
func (l *Logger) Start() {
	l.sub = l.broker.Subscribe()
	go l.drain()
}

// Close unsubscribes, waits for the drain loop to exit, and closes the
// log file.
func (l *Logger) Close() error {
	if l.sub != nil {
		l.broker.Unsubscribe(l.sub)
		<-l.doneCh
	}
	return l.file.Close()
}

func (l *Logger) drain() {
	defer close(l.doneCh)
	for evt := range l.sub {
		l.append(evt)
		l.maybeNotifySlack(evt)
	}
}

func (l *Logger) append(evt *events.Event) {
	rec := Record{
		Time:     evt.Timestamp,
		MemoURI:  string(evt.MemoURI),
		Type:     string(evt.Type),
		Message:  evt.Message,
		Metadata: evt.Metadata,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("summary: failed to marshal record")
		return
	}
	data = append(data, '\n')

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		log.Logger.Warn().Err(err).Msg("summary: failed to append record")
	}
}

func (l *Logger) maybeNotifySlack(evt *events.Event) {
	if l.cfg.SlackWebhook == "" {
		return
	}
	if evt.Type != events.EventCallCrashed && evt.Type != events.EventCallLockStolen {
		return
	}

	msg := &slackapi.WebhookMessage{
		Text: fmt.Sprintf(":warning: mpr %s: %s (%s)", evt.Type, evt.MemoURI, evt.Message),
	}
	if err := slackapi.PostWebhook(l.cfg.SlackWebhook, msg); err != nil {
		log.Logger.Warn().Err(err).Msg("summary: failed to post slack notification")
	}
}

func runDirName(suffix string) string {
	stamp := time.Now().Format("20060102150405")
	if suffix == "" {
		return stamp
	}
	return stamp + "-" + suffix
}
