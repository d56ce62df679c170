package record

import "errors"

// Error taxonomy for the import pipeline. Per-item failures wrap one of
// these sentinels so the orchestrator can classify them with errors.Is;
// none of them ever aborts a multi-file run.
var (
	// ErrParse marks malformed or structurally unrecognized input.
	ErrParse = errors.New("parse error")

	// ErrUnrecognizedFormat marks an HTML document no vendor detector
	// matched. Treated as a skip with a reason, not a hard error.
	ErrUnrecognizedFormat = errors.New("unrecognized format")

	// ErrStore marks a failure signalled by the record store.
	ErrStore = errors.New("store error")
)
