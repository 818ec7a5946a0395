package channel

import "errors"

var (
	ErrAlreadyInitialized = errors.New("channel already initialized")
	ErrNotInitialized     = errors.New("channel not initialized")
	ErrNotOwner           = errors.New("poster is not the channel owner")
	ErrDecode             = errors.New("unable to decode channel action")
)
