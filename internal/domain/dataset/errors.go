package dataset

import "errors"

// Sentinel errors for dataset loading.
var (
	ErrNilStore    = errors.New("dataset: store is nil")
	ErrNilSource   = errors.New("dataset: source is nil")
	ErrNoLocation  = errors.New("dataset: no location configured for season")
	ErrUnavailable = errors.New("dataset: season unavailable")
)
