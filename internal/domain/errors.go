package domain

import "errors"

var (
	ErrBoardNotFound   = errors.New("board not found")
	ErrHorseNotFound   = errors.New("horse not found")
	ErrFeedNotFound    = errors.New("feed not found")
	ErrInvalidPairCode = errors.New("invalid pairing code")
	ErrSessionInvalid  = errors.New("session invalid")
)
