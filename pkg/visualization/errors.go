package visualization

import "errors"

var (
	// ErrUnknownHandle indicates a handle that was never issued by this scene or was removed.
	ErrUnknownHandle = errors.New("visualization: unknown scene handle")

	// ErrWrongKind indicates a handle used for a different node kind than it was issued for.
	ErrWrongKind = errors.New("visualization: handle refers to a different node kind")
)
