package newton

import "errors"

var (
	// ErrClassification indicates a bus appears in more than one of the
	// reference/PV/PQ sets or in none of them.
	ErrClassification = errors.New("newton: bus classification sets must be disjoint")
	// ErrEmptyReference indicates an empty reference set.
	ErrEmptyReference = errors.New("newton: reference bus set is empty")
	// ErrOptionConflict indicates mutually exclusive solver options, such as
	// the acceleration multiplier combined with thermal feedback.
	ErrOptionConflict = errors.New("newton: conflicting solver options")
)
