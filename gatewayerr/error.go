// Package gatewayerr defines the routing core's closed internal failure
// taxonomy (§7) and the Error Shaper that maps it to an outbound HTTP
// status, headers and body.
package gatewayerr

import (
	"fmt"
	"net/http"
)

// Kind is the closed set of internal failure variants from §7.
type Kind int

const (
	NoListener Kind = iota
	NoRoute
	NoBackend
	AuthDenied
	AuthUnavailable
	UpstreamConnFailed
	UpstreamProtocolError
	RequestTimeout
	BackendTimeout
	PoolExhausted
	InternalError
)

func (k Kind) String() string {
	switch k {
	case NoListener:
		return "NoListener"
	case NoRoute:
		return "NoRoute"
	case NoBackend:
		return "NoBackend"
	case AuthDenied:
		return "AuthDenied"
	case AuthUnavailable:
		return "AuthUnavailable"
	case UpstreamConnFailed:
		return "UpstreamConnFailed"
	case UpstreamProtocolError:
		return "UpstreamProtocolError"
	case RequestTimeout:
		return "RequestTimeout"
	case BackendTimeout:
		return "BackendTimeout"
	case PoolExhausted:
		return "PoolExhausted"
	case InternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Error is the single internal error type every core component returns; it
// satisfies the standard error interface and carries the AuthDenied
// variant's explicit status/body/headers, set by the ExtAuthz client when
// a policy denies a request.
type Error struct {
	Kind    Kind
	Status  int // explicit override, only meaningful for AuthDenied
	Body    []byte
	Headers http.Header
}

func New(kind Kind) *Error { return &Error{Kind: kind} }

func Denied(status int, headers http.Header, body []byte) *Error {
	return &Error{Kind: AuthDenied, Status: status, Headers: headers, Body: body}
}

func (e *Error) Error() string {
	return fmt.Sprintf("gatewayerr: %s", e.Kind)
}

// Is supports errors.Is(err, New(someKind)): a target *Error matches when
// its Kind equals e's. Status, Body and Headers are not compared.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
