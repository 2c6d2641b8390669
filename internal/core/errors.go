package core

import "errors"

// ErrRoomClosed is returned when an operation reaches a room whose processing
// loop has been stopped.
var ErrRoomClosed = errors.New("room closed")
