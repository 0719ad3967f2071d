package assim

import "errors"

var (
	// ErrMissingObservations is returned when neither an observation vector
	// nor a perturbed observation ensemble is available.
	ErrMissingObservations = errors.New("observations are missing: supply d or D")

	// ErrNoErrorInformation is returned when measurement errors can neither
	// be read nor derived from the supplied inputs.
	ErrNoErrorInformation = errors.New("no information available to derive measurement errors: supply E, R, D, an error stddev or an error percent")

	// ErrAllModesTruncated is returned when truncation removes the whole
	// singular spectrum.
	ErrAllModesTruncated = errors.New("truncation removed all singular modes")
)
