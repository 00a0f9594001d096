package services

import "errors"

var (
	ErrInputUnreadable   = errors.New("input file could not be read")
	ErrInvalidContent    = errors.New("input content is not a supported text export")
	ErrBrokerUndetected  = errors.New("could not detect broker from file header")
	ErrParsingFailed     = errors.New("parsing failed")
	ErrPersistenceFailed = errors.New("failed to persist trade store")
)
