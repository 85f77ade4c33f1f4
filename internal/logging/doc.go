// Package logging provides structured logging with per-module log levels.
//
// Records go to stderr (so command output on stdout stays clean) and, when
// journald is reachable, to the systemd journal with SYSLOG_IDENTIFIER=tally.
//
// Initialize once at startup, then ask for module loggers:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"gpio": "debug"},
//	})
//
//	logger := logging.GetLogger("gpio")
//	logger.Error("Failed to write GPIO value", "path", path, "error", err)
//
// Journal entries can be filtered by field:
//
//	journalctl -t tally MODULE=gpio
//	journalctl -t tally LINE=597 -p err
package logging
