// Package proxy implements the Timeout & Mirror Orchestrator of §4.7: the
// request-scoped state machine that resolves, authorizes, filters, selects
// a backend and dispatches a request under deadline, then shapes any
// failure into a synthetic response. Grounded on skipper's proxy.Proxy
// shape -- an http.Handler sitting in front of the routing core -- without
// its HTTP/1.1-vs-HTTP/2 codec concerns, which are out of scope here.
package proxy

import (
	"context"
	"errors"
	"net/http"
)

// DispatchErrorKind classifies an Upstream.Dispatch failure per §6's
// outbound error variant.
type DispatchErrorKind int

const (
	ConnFailed DispatchErrorKind = iota
	DispatchTimeout
	ProtocolError
	PoolExhausted
)

func (k DispatchErrorKind) String() string {
	switch k {
	case ConnFailed:
		return "ConnFailed"
	case DispatchTimeout:
		return "Timeout"
	case ProtocolError:
		return "ProtocolError"
	case PoolExhausted:
		return "PoolExhausted"
	default:
		return "Unknown"
	}
}

// DispatchError is the error type Upstream implementations return to
// report a typed outbound failure instead of a bare error; the
// orchestrator maps it onto the internal gatewayerr taxonomy.
type DispatchError struct {
	Kind DispatchErrorKind
	Err  error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Upstream is the outbound collaborator of §6: dispatch(backend_ref,
// outbound_req, deadline) -> response | error. The deadline is carried on
// ctx; implementations must respect ctx cancellation and return a
// *DispatchError so the orchestrator can classify the failure.
type Upstream interface {
	Dispatch(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error)
}

// UpstreamFunc adapts a plain function to Upstream, mirroring
// http.HandlerFunc's adapter idiom.
type UpstreamFunc func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error)

func (f UpstreamFunc) Dispatch(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
	return f(ctx, serviceRef, port, req)
}

// classifyTimeout distinguishes which armed deadline actually fired: the
// overall request deadline (reqCtx) takes precedence over the narrower
// per-attempt deadline (attemptCtx), since a request_timeout expiry must
// report RequestTimeout even if it happens to race the backend attempt's
// own deadline.
func classifyTimeout(reqCtx, attemptCtx context.Context) (requestLevel bool) {
	return errors.Is(reqCtx.Err(), context.DeadlineExceeded)
}
