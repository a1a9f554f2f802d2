package chunker

import "errors"

var (
	// ErrUnknownStrategy is returned when a strategy name is not recognised.
	ErrUnknownStrategy = errors.New("unknown chunking strategy")

	// ErrEncoderRequired is returned when the token strategy has no encoder.
	ErrEncoderRequired = errors.New("token encoder required")
)
