package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation wraps input that failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the caller may not act on the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition is returned for state changes the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInsufficientStock is returned by stock decrements that would go negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrChatAlreadyClaimed is returned to the losing side of a claim race.
	ErrChatAlreadyClaimed = errors.New("chat already claimed")
	// ErrRepBusy is returned when a representative already owns an assigned chat.
	ErrRepBusy = errors.New("representative already has an active chat")
	// ErrChatClosed is returned when posting to a closed chat.
	ErrChatClosed = errors.New("chat is closed")
)
