package intent

import "errors"

// Intent parsing errors.
var (
	// ErrUnknownWillingness is returned for a label outside the six tiers.
	ErrUnknownWillingness = errors.New("unknown willingness label")

	// ErrMalformedJudgment is returned when a model response is missing
	// required judgment parts.
	ErrMalformedJudgment = errors.New("malformed judgment")
)
