package domain

import "errors"

var (
	// ErrUnauthorized is returned when the API rejects the bearer credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned when login or register is refused.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation indicates the API rejected the request payload (422).
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUpstream covers any other API failure.
	ErrUpstream = errors.New("quiz api error")
	// ErrNoQuizAvailable is returned when the catalog is empty.
	ErrNoQuizAvailable = errors.New("no quiz available")
	// ErrNoSelection is returned when submitting without a selected option.
	ErrNoSelection = errors.New("no option selected")
	// ErrOptionNotFound indicates a selected option is not on the displayed question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrNotFinished is returned when a result is requested before the attempt ended.
	ErrNotFinished = errors.New("attempt not finished")
	// ErrControllerClosed is returned by a controller after Close.
	ErrControllerClosed = errors.New("quiz session closed")
)
