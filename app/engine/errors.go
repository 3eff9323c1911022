package engine

import "errors"

var (
	// ErrEmptyAudience means no selected recipient has a usable phone number
	ErrEmptyAudience = errors.New("audience has no recipient with a usable phone number")

	// ErrQuotaExhausted is the clean stop condition when the session quota
	// is spent; remaining entries stay pending for the next pass
	ErrQuotaExhausted = errors.New("session quota exhausted")

	// ErrSessionOffline means the destination session is not connected; the
	// run is blocked and nothing is dequeued
	ErrSessionOffline = errors.New("session gateway not connected")
)
