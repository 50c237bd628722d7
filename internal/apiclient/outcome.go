package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies how a call resolved.
type Kind int

const (
	KindSuccess Kind = iota + 1
	KindAuthFailure
	KindClientError
	KindServerError
	KindTransportError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindAuthFailure:
		return "auth_failure"
	case KindClientError:
		return "client_error"
	case KindServerError:
		return "server_error"
	case KindTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against Outcome.Err.
var (
	ErrTransport   = errors.New("transport failure")
	ErrAuthFailure = errors.New("authentication failed")
	ErrClientError = errors.New("client error")
	ErrServerError = errors.New("server error")
)

// Outcome is the typed result of Client.Send.
type Outcome struct {
	Kind   Kind
	Status int
	Header http.Header
	Body   []byte
	// Cause is set for KindTransportError.
	Cause error
	// RequestID is the identity header of the final attempt.
	RequestID string
	// Attempts counts dispatches that reached the transport.
	Attempts int
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Decode unmarshals the JSON body into dest. An empty body leaves dest as is.
func (o Outcome) Decode(dest any) error {
	if dest == nil || len(o.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(o.Body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Err converts a non-success outcome into an *Error. It returns nil on success.
func (o Outcome) Err() error {
	if o.Kind == KindSuccess {
		return nil
	}
	return &Error{Outcome: o}
}

// Error wraps a non-success Outcome. It unwraps to the sentinel for its kind
// and, for transport failures, to the underlying cause.
type Error struct {
	Outcome Outcome
}

func (e *Error) Error() string {
	o := e.Outcome
	switch o.Kind {
	case KindTransportError:
		return fmt.Sprintf("%v: %v", ErrTransport, o.Cause)
	case KindAuthFailure:
		return ErrAuthFailure.Error()
	default:
		msg := fmt.Sprintf("%s: status %d", o.Kind, o.Status)
		if detail := strings.TrimSpace(string(o.Body)); detail != "" {
			if len(detail) > 200 {
				detail = detail[:200]
			}
			msg += ": " + detail
		}
		return msg
	}
}

func (e *Error) Unwrap() []error {
	switch e.Outcome.Kind {
	case KindTransportError:
		if e.Outcome.Cause != nil {
			return []error{ErrTransport, e.Outcome.Cause}
		}
		return []error{ErrTransport}
	case KindAuthFailure:
		return []error{ErrAuthFailure}
	case KindClientError:
		return []error{ErrClientError}
	case KindServerError:
		return []error{ErrServerError}
	default:
		return nil
	}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Outcome.Status
	}
	return 0
}

// classify maps a non-401 response to an outcome kind.
func classify(status int) Kind {
	switch {
	case status >= 500:
		return KindServerError
	case status >= 400:
		return KindClientError
	default:
		return KindSuccess
	}
}
