package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	defaultMaxIdleConnsPerHost = 64
	defaultIdleConnSweep       = 30 * time.Second
)

// HTTPUpstream is the production Upstream: it dispatches over plain HTTP to
// serviceRef:port using a shared, connection-pooling http.Transport,
// grounded on filters/auth/authclient.go's transport construction and
// periodic CloseIdleConnections sweep.
type HTTPUpstream struct {
	transport *http.Transport
	quit      chan struct{}
}

// NewHTTPUpstream builds an HTTPUpstream with a background goroutine that
// periodically closes idle connections, same as authclient.go's sweep for
// its ext-authz HTTP client.
func NewHTTPUpstream() *HTTPUpstream {
	u := &HTTPUpstream{
		transport: &http.Transport{
			MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
			ResponseHeaderTimeout: 0, // bounded by the dispatch context deadline instead
			TLSHandshakeTimeout:   10 * time.Second,
		},
		quit: make(chan struct{}),
	}
	go u.sweepIdleConnections()
	return u
}

func (u *HTTPUpstream) sweepIdleConnections() {
	ticker := time.NewTicker(defaultIdleConnSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			u.transport.CloseIdleConnections()
		case <-u.quit:
			return
		}
	}
}

// Close stops the idle-connection sweep and releases pooled connections.
func (u *HTTPUpstream) Close() {
	close(u.quit)
	u.transport.CloseIdleConnections()
}

// Dispatch implements Upstream by rewriting req's target to serviceRef:port
// and issuing it over the shared transport. serviceRef is resolved by
// whatever name resolution the host environment provides (DNS, cluster
// service name); this core does no service discovery of its own.
func (u *HTTPUpstream) Dispatch(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
	outbound := req.Clone(ctx)
	outbound.RequestURI = ""
	outbound.URL.Scheme = "http"
	outbound.URL.Host = fmt.Sprintf("%s:%d", serviceRef, port)
	outbound.Host = outbound.URL.Host

	resp, err := u.transport.RoundTrip(outbound)
	if err != nil {
		return nil, classifyRoundTripError(err)
	}
	return resp, nil
}

// classifyRoundTripError maps a net/http transport error onto the §6
// DispatchErrorKind taxonomy.
func classifyRoundTripError(err error) *DispatchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &DispatchError{Kind: DispatchTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &DispatchError{Kind: DispatchTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &DispatchError{Kind: ConnFailed, Err: err}
	}
	return &DispatchError{Kind: ProtocolError, Err: err}
}
