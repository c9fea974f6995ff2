package domain

import "errors"

// Core error kinds. Adapters wrap these with fmt.Errorf("%w: ...") so callers
// can branch with errors.Is.
var (
	// ErrIO reports an image that could not be read or decoded.
	ErrIO = errors.New("image io error")

	// ErrModelLoad reports an unreachable or malformed model artifact.
	ErrModelLoad = errors.New("model load error")

	// ErrIndexBuild reports a missing or unreadable dataset root.
	ErrIndexBuild = errors.New("index build error")

	// ErrEmptyIndex reports a built index with no entries.
	ErrEmptyIndex = errors.New("reference index is empty")
)
