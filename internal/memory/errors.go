package memory

import "errors"

// Store errors.
var (
	// ErrNotFound is returned when reading or editing a file that does not exist,
	// or when an edit's oldText has no match.
	ErrNotFound = errors.New("not found")

	// ErrPathUnsafe is returned when a path is absolute or escapes the
	// agent workspace.
	ErrPathUnsafe = errors.New("path outside agent workspace")

	// ErrAmbiguousEdit is returned when oldText matches more than once.
	ErrAmbiguousEdit = errors.New("edit text matches multiple locations")

	// ErrNoChange is returned when an edit would leave content unchanged.
	ErrNoChange = errors.New("edit produces no change")

	// ErrPermissionDenied is returned when a write targets a tier the caller
	// is not permitted to mutate. Checked before any I/O.
	ErrPermissionDenied = errors.New("permission denied")
)
