package store

import "github.com/pkg/errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrMessageNotFound      = errors.New("message not found")
	ErrRequestInFlight      = errors.New("a request is already in flight")
	// ErrStaleRequest is returned by mutations guarded on a request that is
	// no longer the current one.
	ErrStaleRequest = errors.New("request is no longer current")
	// ErrLoadingWithoutRequest is returned when loading is set without a
	// request handle.
	ErrLoadingWithoutRequest = errors.New("loading requires an in-flight request")
)
