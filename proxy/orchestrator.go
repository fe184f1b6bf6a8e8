package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentgateway/agentgateway/filters"
	"github.com/agentgateway/agentgateway/gatewayerr"
	"github.com/agentgateway/agentgateway/loadbalancer"
	"github.com/agentgateway/agentgateway/logging"
	"github.com/agentgateway/agentgateway/matcher"
	"github.com/agentgateway/agentgateway/model"
	"github.com/agentgateway/agentgateway/requestid"
	"github.com/agentgateway/agentgateway/resolver"
	"github.com/agentgateway/agentgateway/snapshot"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultBackendTimeout = 10 * time.Second
	defaultMirrorRate     = 200 // mirror goroutines/sec per Orchestrator
	defaultMirrorBurst    = 50
)

// Orchestrator implements the Timeout & Mirror Orchestrator of §4.7 as an
// http.Handler fronting a single Bind's listening port, grounded on
// skipper's proxy.Proxy being an http.Handler wired one per listener.
type Orchestrator struct {
	boundPort int
	store     *snapshot.Store
	upstream  Upstream
	selector  *loadbalancer.Selector
	ids       *requestid.Generator
	authz     *authzClients
	mirrorLim *rate.Limiter
	log       logging.Logger

	defaultRequestTimeout time.Duration
	defaultBackendTimeout time.Duration
	defaultAuthzContext   map[string]string
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

func WithLogger(l logging.Logger) Option { return func(o *Orchestrator) { o.log = l } }

func WithAuthzDialer(d AuthzDialer) Option {
	return func(o *Orchestrator) { o.authz = newAuthzClients(d) }
}

func WithDefaultTimeouts(request, backend time.Duration) Option {
	return func(o *Orchestrator) {
		o.defaultRequestTimeout = request
		o.defaultBackendTimeout = backend
	}
}

// WithMirrorRateLimit sets the mirror dispatch limiter. The limiter is
// created once, so every Orchestrator built with the same Option shares it.
func WithMirrorRateLimit(r rate.Limit, burst int) Option {
	lim := rate.NewLimiter(r, burst)
	return func(o *Orchestrator) { o.mirrorLim = lim }
}

func WithSelector(s *loadbalancer.Selector) Option { return func(o *Orchestrator) { o.selector = s } }

func WithRequestIDGenerator(g *requestid.Generator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// WithDefaultAuthzContextExtensions sets context extensions merged into
// every ExtAuthz check; a route's own ExtAuthzPolicy.ContextExtensions
// overrides these on key conflict.
func WithDefaultAuthzContextExtensions(ext map[string]string) Option {
	return func(o *Orchestrator) { o.defaultAuthzContext = ext }
}

// New constructs an Orchestrator serving requests accepted on boundPort.
func New(store *snapshot.Store, upstream Upstream, boundPort int, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		boundPort:             boundPort,
		store:                 store,
		upstream:              upstream,
		selector:              loadbalancer.New(nil),
		ids:                   requestid.Default(),
		authz:                 newAuthzClients(defaultAuthzDialer),
		mirrorLim:             rate.NewLimiter(defaultMirrorRate, defaultMirrorBurst),
		log:                   logging.New(logging.Options{}),
		defaultRequestTimeout: defaultRequestTimeout,
		defaultBackendTimeout: defaultBackendTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	acceptedAt := time.Now()
	reqID := o.ids.Generate()

	handle, ok := o.store.Current()
	if !ok {
		o.writeShaped(w, gatewayerr.Shape(gatewayerr.New(gatewayerr.InternalError)))
		return
	}

	view := &matcher.RequestView{
		Authority: hostOf(r),
		Path:      r.URL.Path,
		Method:    r.Method,
		Headers:   r.Header,
		Query:     r.URL.Query(),
	}
	transport := resolver.Transport{BoundPort: o.boundPort, SNI: sniOf(r)}

	decision := resolver.Resolve(handle, transport, view)
	if !decision.Matched {
		kind := gatewayerr.NoListener
		if decision.Rejection == resolver.NoRoute {
			kind = gatewayerr.NoRoute
		}
		o.log.WithField("request_id", reqID).Warnf("rejected: %s", decision.Rejection)
		o.writeShaped(w, gatewayerr.Shape(gatewayerr.New(kind)))
		return
	}

	route := decision.Route
	log := o.log.WithFields(map[string]interface{}{
		"request_id": reqID,
		"route_id":   route.Name,
		"listener":   decision.Listener.Name,
	})
	log.Debugf("state=%s", Resolved)

	requestTimeout := o.defaultRequestTimeout
	if route.TrafficPolicy.RequestTimeout != nil {
		requestTimeout = *route.TrafficPolicy.RequestTimeout
	}
	ctx, cancel := context.WithDeadline(r.Context(), acceptedAt.Add(requestTimeout))
	defer cancel()

	outbound := r.Clone(ctx)
	outbound.RequestURI = ""

	var responseHeadersToAdd []model.HeaderKV
	if route.ExtAuthz != nil {
		outcome := o.checkAuthz(ctx, route.ExtAuthz, reqID, outbound)
		if !outcome.Allowed {
			log.Warnf("state=%s reason=auth_denied", Aborted)
			o.writeShaped(w, gatewayerr.Shape(outcome.Denied))
			return
		}
		outcome.ApplyToRequest(outbound.Header)
		applyQueryMutations(outbound.URL, outcome.QueryParametersToSet, outcome.QueryParametersToRemove)
		responseHeadersToAdd = outcome.ResponseHeadersToAdd
	}

	filterCtx := filters.NewFilterContext(outbound, matcher.MatchedPathPrefix(decision.Match))

	if _, aborted := o.runPhase(w, log, filterCtx, buildPipeline(route.Filters, filters.PhaseRequest)); aborted {
		return
	}

	backend, berr := o.selector.Select(route.Backends)
	if berr != nil {
		log.Warnf("state=%s reason=no_backend", Aborted)
		o.writeShaped(w, gatewayerr.Shape(berr))
		return
	}

	if _, aborted := o.runPhase(w, log, filterCtx, buildPipeline(backend.Filters, filters.PhaseRequest)); aborted {
		return
	}

	log.Debugf("state=%s", Filtered)
	o.dispatchMirrors(filterCtx.Mirrors, filterCtx.Request, log)

	backendTimeout := o.defaultBackendTimeout
	if route.TrafficPolicy.BackendRequestTimeout != nil {
		backendTimeout = *route.TrafficPolicy.BackendRequestTimeout
	}
	dispatchedAt := time.Now()
	dctx, dcancel := context.WithDeadline(ctx, dispatchedAt.Add(backendTimeout))
	defer dcancel()

	log.Debugf("state=%s backend=%s", Dispatched, backend.ServiceRef)
	resp, err := o.upstream.Dispatch(dctx, backend.ServiceRef, backend.Port, filterCtx.Request)
	if err != nil {
		gwErr := mapDispatchError(err, ctx, dctx)
		log.Warnf("state=%s kind=%s", Aborted, gwErr.Kind)
		o.writeShaped(w, gatewayerr.Shape(gwErr))
		return
	}
	log.Debugf("state=%s status=%d", Responded, resp.StatusCode)

	filterCtx.Response = resp
	if _, aborted := o.runPhase(w, log, filterCtx, buildPipeline(backend.Filters, filters.PhaseResponse)); aborted {
		closeBody(resp)
		return
	}
	if _, aborted := o.runPhase(w, log, filterCtx, buildPipeline(route.Filters, filters.PhaseResponse)); aborted {
		closeBody(resp)
		return
	}

	for _, kv := range responseHeadersToAdd {
		filterCtx.Response.Header.Add(kv.Name, kv.Value)
	}
	o.writeUpstream(w, filterCtx.Response)
	log.Debugf("state=%s", Completed)
}

// runPhase executes one phase's pipeline and, on anything but Continue,
// writes the terminal response and reports aborted=true so the caller can
// stop processing the request.
func (o *Orchestrator) runPhase(w http.ResponseWriter, log logging.Logger, ctx *filters.FilterContext, pipeline *filters.Pipeline) (filters.Result, bool) {
	result := pipeline.Run(ctx)
	switch result.Kind {
	case filters.ResultContinue:
		return result, false
	case filters.ResultShortCircuit:
		o.writeUpstream(w, result.Response)
		return result, true
	case filters.ResultFail:
		gwErr, ok := result.Err.(*gatewayerr.Error)
		if !ok {
			gwErr = gatewayerr.New(gatewayerr.InternalError)
		}
		log.Warnf("state=%s kind=%s", Aborted, gwErr.Kind)
		o.writeShaped(w, gatewayerr.Shape(gwErr))
		return result, true
	default:
		return result, false
	}
}

func (o *Orchestrator) writeShaped(w http.ResponseWriter, s gatewayerr.Shaped) {
	for k, vs := range s.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(s.Status)
	if len(s.Body) > 0 {
		_, _ = w.Write(s.Body)
	}
}

func (o *Orchestrator) writeUpstream(w http.ResponseWriter, resp *http.Response) {
	if resp == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer closeBody(resp)
	dst := w.Header()
	for k, vs := range resp.Header {
		dst[k] = vs
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != nil {
		_, _ = io.Copy(w, resp.Body)
	}
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

// mapDispatchError classifies an Upstream failure per §7: a fired overall
// request_timeout takes precedence over the narrower backend attempt
// deadline, even though both derive from the same cancellation chain.
func mapDispatchError(err error, reqCtx, attemptCtx context.Context) *gatewayerr.Error {
	if classifyTimeout(reqCtx, attemptCtx) {
		return gatewayerr.New(gatewayerr.RequestTimeout)
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return gatewayerr.New(gatewayerr.BackendTimeout)
	}
	var derr *DispatchError
	if errors.As(err, &derr) {
		switch derr.Kind {
		case ConnFailed:
			return gatewayerr.New(gatewayerr.UpstreamConnFailed)
		case DispatchTimeout:
			return gatewayerr.New(gatewayerr.BackendTimeout)
		case ProtocolError:
			return gatewayerr.New(gatewayerr.UpstreamProtocolError)
		case PoolExhausted:
			return gatewayerr.New(gatewayerr.PoolExhausted)
		}
	}
	return gatewayerr.New(gatewayerr.InternalError)
}

func hostOf(r *http.Request) string {
	if r.Host != "" {
		return r.Host
	}
	return r.URL.Host
}

func sniOf(r *http.Request) string {
	if r.TLS != nil {
		return r.TLS.ServerName
	}
	return ""
}

func applyQueryMutations(u *url.URL, toSet []model.HeaderKV, toRemove []string) {
	if len(toSet) == 0 && len(toRemove) == 0 {
		return
	}
	q := u.Query()
	for _, name := range toRemove {
		q.Del(name)
	}
	for _, kv := range toSet {
		q.Set(kv.Name, kv.Value)
	}
	u.RawQuery = q.Encode()
}
