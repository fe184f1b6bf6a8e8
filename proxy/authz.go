package proxy

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/agentgateway/agentgateway/extauthz"
	"github.com/agentgateway/agentgateway/model"
)

// AuthzDialer opens a Client for a given dial target, abstracted so tests
// can substitute a fake without a real gRPC server. defaultAuthzDialer
// adapts extauthz.Dial to it.
type AuthzDialer func(target string) (extauthz.Client, error)

// authzClients caches one Client per dial target for the lifetime of the
// orchestrator, since opening a gRPC connection per request would defeat
// connection reuse.
type authzClients struct {
	dial AuthzDialer

	mu      sync.Mutex
	clients map[string]extauthz.Client
}

func newAuthzClients(dial AuthzDialer) *authzClients {
	return &authzClients{dial: dial, clients: map[string]extauthz.Client{}}
}

func (c *authzClients) get(target string) (extauthz.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[target]; ok {
		return cl, nil
	}
	cl, err := c.dial(target)
	if err != nil {
		return nil, err
	}
	c.clients[target] = cl
	return cl, nil
}

const defaultAuthzTimeout = 2 * time.Second

// defaultAuthzDialer dials a real gRPC ExtAuthz target. Orchestrators that
// never route through ExtAuthz-configured routes never call it.
func defaultAuthzDialer(target string) (extauthz.Client, error) {
	return extauthz.Dial(target)
}

// checkAuthz runs the External Authorization Client exchange of §4.6 for
// policy against req, returning the interpreted Outcome. Transport
// failures are mapped to extauthz.Unavailable per the policy's failure
// mode, never propagated as a raw error.
func (o *Orchestrator) checkAuthz(ctx context.Context, policy *model.ExtAuthzPolicy, reqID string, req *http.Request) extauthz.Outcome {
	client, err := o.authz.get(policy.Target)
	if err != nil {
		return extauthz.Unavailable(policy.FailureMode == model.AuthzFailOpen)
	}

	attrs := extauthz.RequestAttributes{
		ID:                reqID,
		Method:            req.Method,
		Headers:           req.Header,
		Path:              req.URL.Path,
		Host:              req.Host,
		Scheme:            schemeOf(req),
		Protocol:          req.Proto,
		Size:              req.ContentLength,
		SourceAddr:        req.RemoteAddr,
		DestAddr:          localAddrOf(req),
		ContextExtensions: mergeContextExtensions(o.defaultAuthzContext, policy.ContextExtensions),
	}
	if req.TLS != nil {
		attrs.SNI = req.TLS.ServerName
	}

	checkCtx, cancel := extauthz.WithTimeout(ctx, defaultAuthzTimeout)
	defer cancel()

	resp, err := client.Check(checkCtx, extauthz.BuildCheckRequest(attrs, time.Now()))
	if err != nil {
		return extauthz.Unavailable(policy.FailureMode == model.AuthzFailOpen)
	}
	return extauthz.Interpret(resp)
}

// mergeContextExtensions combines process-wide defaults with a route's own
// extensions, the route's keys winning on conflict.
func mergeContextExtensions(defaults, route map[string]string) map[string]string {
	if len(defaults) == 0 {
		return route
	}
	merged := make(map[string]string, len(defaults)+len(route))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range route {
		merged[k] = v
	}
	return merged
}

func schemeOf(req *http.Request) string {
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

// localAddrOf recovers the connection's local address from the request
// context, where net/http's Server stashes it under http.LocalAddrContextKey.
func localAddrOf(req *http.Request) string {
	if a, ok := req.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		return a.String()
	}
	return ""
}
