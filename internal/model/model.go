package model

import "errors"

// Error classes shared by stores, usecases and delivery.
// Callers classify with errors.Is, never by message.
var (
	ErrValidation      = errors.New("validation failed")
	ErrSessionNotFound = errors.New("session not found")
	ErrTransientStore  = errors.New("store unavailable")
)

type SessionID = string

type UserID = string

const EmptySessionID SessionID = ""
