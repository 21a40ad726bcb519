package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by enable calls on a session that has
	// not been initialised.
	ErrNotInitialized = errors.New("camera session not initialized")
	// ErrAlreadyInitialized is returned by Init on a live session.
	ErrAlreadyInitialized = errors.New("camera session already initialized")
	// ErrReleased is returned by operations on a released session. A
	// released session cannot be initialised again; open a new one.
	ErrReleased = errors.New("camera session released")
	// ErrDecode marks a metadata payload that could not be decoded.
	ErrDecode = errors.New("metadata decode failed")
)

// InitError reports a non-zero status from the native init call. The
// session stays uninitialised.
type InitError struct {
	Status     int
	Resolution int
	FPS        int
}

func (e *InitError) Error() string {
	return fmt.Sprintf("camera init failed (resolution %d, %d fps): status %d", e.Resolution, e.FPS, e.Status)
}

// EnableError reports a non-zero status from a channel enable call. Other
// channels of the session remain usable.
type EnableError struct {
	Channel Channel
	Status  int
}

func (e *EnableError) Error() string {
	return fmt.Sprintf("enable %s failed: status %d", e.Channel, e.Status)
}
