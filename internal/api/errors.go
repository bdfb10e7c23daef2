package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoTokenReceived = errors.New("no token received")
)

// Error is a non-success response from the API. Message is the
// server-provided text, or the operation's generic fallback when the body
// carried none.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TransportError wraps a failure that happened before any response arrived.
// Its message is the operation's generic fallback.
type TransportError struct {
	Op       string
	Fallback string
	Err      error
}

func (e *TransportError) Error() string {
	return e.Fallback
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Detail includes the underlying cause, for logs.
func (e *TransportError) Detail() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newError(status int, body []byte, fallback string) *Error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if msg := strings.TrimSpace(eb.Error); msg != "" {
			return &Error{Status: status, Message: msg}
		}
		if msg := strings.TrimSpace(eb.Message); msg != "" {
			return &Error{Status: status, Message: msg}
		}
	}
	return &Error{Status: status, Message: fallback}
}
