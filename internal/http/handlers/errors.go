package handlers

import "errors"

var (
	errMissingUser   = errors.New("missing or invalid user id")
	errInvalidID     = errors.New("invalid mission id")
	errInvalidAction = errors.New("invalid action")
)
