/*
Package summary maintains an append-only, human-inspectable record of
every call event an mpr process publishes: time, memo URI, event type,
message, and any event metadata. It subscribes to pkg/events rather
than being called directly, so the Runner's hot path never blocks on log
I/O.

Each process run gets its own directory,
<summary_dir>/<YYYYMMDDHHmmss>-<suffix>/calls.jsonl, one JSON object per
line. When summary_slack_webhook is configured, call.crashed and
call.lock_stolen events are also mirrored to Slack via a webhook post —
an operator convenience layered on top of the log, not a replacement
for it.
*/
package summary
