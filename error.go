package kindaxml

import (
	"github.com/juju/errors"
)

// Configuration errors. Parsing itself never fails on input; these are
// returned (or panicked via the With* builders) when a ParserConfig
// setter receives an identifier it does not know.
var (
	// ErrInvalidStrategy is the cause of errors returned when a
	// recovery-strategy identifier is not one of "closed_span",
	// "retro_line", "forward_next_token", "forward_until_tag", "drop".
	ErrInvalidStrategy = errors.New("invalid recovery strategy")

	// ErrInvalidUnknownMode is the cause of errors returned when an
	// unknown-tag mode identifier is not "strip" or "passthrough".
	ErrInvalidUnknownMode = errors.New("invalid unknown-tag mode")
)
