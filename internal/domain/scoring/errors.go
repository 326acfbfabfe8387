package scoring

import "errors"

// Sentinel kinds for scoring errors. Score itself never fails; these surface
// only from option validation.
var (
	ErrNilDatasets = errors.New("scoring: dataset provider is nil")
)
