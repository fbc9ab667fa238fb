/*
Package log provides structured logging for mpr using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
scoped child loggers (by memo URI, run, or agent), configurable log
levels, and helper functions for common logging patterns. All logs
include timestamps and support filtering by severity for production
debugging of long-running pipelines.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│  Global Logger (zerolog.Logger, initialized via Init())   │
	│    │                                                      │
	│    ├─ Config: Level, JSONOutput, Output                   │
	│    │                                                      │
	│    └─ Scoped loggers:                                     │
	│         WithComponent("runner")                           │
	│         WithMemoURI("mops2-mpf/.../abcd1234")              │
	│         WithRunID("2607301530-amber-otter")                │
	│         WithAgentID("agent-7f3a")                          │
	└────────────────────────────────────────────────────────┘

JSON output:

	{"level":"info","component":"runner","memo_uri":"...","message":"call resolved"}

Console output:

	10:30AM INF call resolved component=runner memo_uri=...

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithMemoURI(string(memoURI))
	logger.Info().Str("outcome", "hit").Msg("call resolved")

# Integration Points

Packages that log do so through this package rather than the standard
library, among them pkg/runner, pkg/remoteentry, pkg/lease, pkg/shim,
pkg/clusteragent and pkg/clustermanager. pkg/blobstore does not log.
*/
package log
