package source

import "errors"

// Sentinel kinds for dataset source errors.
var (
	ErrMalformedDataset  = errors.New("malformed dataset")
	ErrFetch             = errors.New("dataset fetch failed")
	ErrUnsupportedScheme = errors.New("unsupported dataset location scheme")
)
