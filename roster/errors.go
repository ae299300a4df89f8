package roster

import "errors"

var (
	ErrParticipantNotFound = errors.New("participant is not signed up")
	ErrAlreadySignedUp     = errors.New("participant is already signed up")
	ErrInvalidParticipant  = errors.New("invalid participant id")
	ErrInvalidLimit        = errors.New("invalid limit")
	ErrInvalidTier         = errors.New("invalid access tier")
	ErrCorruptSnapshot     = errors.New("corrupt roster snapshot")
)
