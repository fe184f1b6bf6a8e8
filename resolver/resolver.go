// Package resolver implements the Request Resolver of §4.3: given a parsed
// request view and transport info, it walks a Matcher Index to produce a
// routing decision or a typed rejection. It is pure over a fixed
// snapshot.Handle: identical inputs yield identical outputs.
package resolver

import (
	"github.com/agentgateway/agentgateway/matcher"
	"github.com/agentgateway/agentgateway/model"
	"github.com/agentgateway/agentgateway/snapshot"
)

// RejectReason classifies why resolution failed to produce a routing
// decision.
type RejectReason int

const (
	NoListener RejectReason = iota
	NoRoute
)

func (r RejectReason) String() string {
	switch r {
	case NoListener:
		return "NoListener"
	case NoRoute:
		return "NoRoute"
	default:
		return "Unknown"
	}
}

// Transport carries the connection-level facts the codec collaborator
// already knows: the bound port and, for TLS-family listeners, the SNI
// presented at the handshake.
type Transport struct {
	BoundPort int
	SNI       string // empty for non-TLS listeners
}

// Decision is the outcome of Resolve: Matched reports success, and when it
// is false Rejection says why (Listener is also set for NoRoute). Match
// carries the winning RouteMatch (nil if Route has no
// match rules), letting callers recover the matched path prefix via
// matcher.MatchedPathPrefix for url_rewrite/request_redirect's prefix mode.
type Decision struct {
	Matched   bool
	Listener  *model.Listener
	Route     *model.Route
	Match     *model.RouteMatch
	Rejection RejectReason
}

// Resolve walks handle.Index to produce a Decision for req arriving over
// transport. Path matching operates on req.Path before any rewrite, per
// §4.3 -- callers must pass the pristine, pre-filter path.
func Resolve(handle *snapshot.Handle, transport Transport, req *matcher.RequestView) Decision {
	sniOrHost := transport.SNI
	if sniOrHost == "" {
		sniOrHost = req.Authority
	}

	bind, ok := handle.Index.BindByPort(transport.BoundPort)
	if !ok {
		return Decision{Rejection: NoListener}
	}
	listener, ok := handle.Index.SelectListener(bind, sniOrHost)
	if !ok {
		return Decision{Rejection: NoListener}
	}
	route, match, ok := handle.Index.SelectRoute(listener, req)
	if !ok {
		return Decision{Listener: listener, Rejection: NoRoute}
	}
	return Decision{Matched: true, Listener: listener, Route: route, Match: match}
}
