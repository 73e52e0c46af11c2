package vectorindex

import "errors"

var (
	// ErrEmptyCorpus is returned when a build is attempted with no records.
	// A previously published index stays untouched.
	ErrEmptyCorpus = errors.New("vectorindex: empty corpus")

	// ErrIndexNotBuilt is returned when a search runs before any successful build.
	ErrIndexNotBuilt = errors.New("vectorindex: index not built")

	// ErrDimensionMismatch is returned when vectors within one build, or a
	// query vector against the built index, disagree on dimensionality.
	ErrDimensionMismatch = errors.New("vectorindex: vector dimension mismatch")
)
