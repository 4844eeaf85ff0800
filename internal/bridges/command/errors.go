package command

import "errors"

var (
	// ErrUnknownTopic is returned for messages outside the command namespace.
	ErrUnknownTopic = errors.New("command: not a station command topic")

	// ErrAlreadyStarted is returned by Start on a running bridge.
	ErrAlreadyStarted = errors.New("command: bridge already started")

	ErrMissingSubscriber = errors.New("command: subscriber is required")
	ErrMissingEnqueuer   = errors.New("command: enqueuer is required")
)
