package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"

	"github.com/agentgateway/agentgateway/extauthz"
	"github.com/agentgateway/agentgateway/loadbalancer"
	"github.com/agentgateway/agentgateway/model"
	"github.com/agentgateway/agentgateway/snapshot"
)

func publishedStore(t *testing.T, s *model.Snapshot) *snapshot.Store {
	t.Helper()
	require.NoError(t, model.Validate(s))
	store := snapshot.New()
	store.Publish(s)
	return store
}

func dur(d time.Duration) *time.Duration { return &d }

// TestPassThroughDispatch covers scenario 1: a matched prefix route
// dispatches to its sole backend and the upstream response passes through
// unchanged.
func TestPassThroughDispatch(t *testing.T) {
	snap := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "api",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/api"}}},
			Backends:    []model.RouteBackend{{ServiceRef: "svc-A", Weight: 1}},
		}},
	}
	store := publishedStore(t, snap)

	var gotServiceRef string
	upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
		gotServiceRef = serviceRef
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}, nil
	})

	o := New(store, upstream, 8080)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://h/api/users", nil)
	o.ServeHTTP(w, r)

	assert.Equal(t, "svc-A", gotServiceRef)
	assert.Equal(t, 200, w.Code)
}

// TestRedirectShortCircuitsBeforeDispatch covers scenario 3.
func TestRedirectShortCircuitsBeforeDispatch(t *testing.T) {
	snap := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "old",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/old"}}},
			Filters: []model.RouteFilter{{
				Kind: model.FilterRequestRedirect,
				Redirect: &model.RequestRedirect{
					Scheme: strPtr("https"),
					Status: 301,
				},
			}},
			Backends: []model.RouteBackend{{ServiceRef: "svc-A", Weight: 1}},
		}},
	}
	store := publishedStore(t, snap)

	dispatched := false
	upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
		dispatched = true
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}, nil
	})

	o := New(store, upstream, 8080)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://h/old/x?y=1", nil)
	o.ServeHTTP(w, r)

	assert.False(t, dispatched)
	assert.Equal(t, 301, w.Code)
	assert.Equal(t, "https://h/old/x?y=1", w.Header().Get("Location"))
}

// TestRequestTimeoutAbortsWithGatewayTimeout covers scenario 5: a hung
// upstream is aborted once request_timeout elapses and the client
// receives 504.
func TestRequestTimeoutAbortsWithGatewayTimeout(t *testing.T) {
	snap := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:          "slow",
			ListenerRef:   "l1",
			Matches:       []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/"}}},
			Backends:      []model.RouteBackend{{ServiceRef: "svc-A", Weight: 1}},
			TrafficPolicy: model.TrafficPolicy{RequestTimeout: dur(50 * time.Millisecond)},
		}},
	}
	store := publishedStore(t, snap)

	upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
		<-ctx.Done()
		return nil, &DispatchError{Kind: DispatchTimeout, Err: ctx.Err()}
	})

	o := New(store, upstream, 8080)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://h/x", nil)

	start := time.Now()
	o.ServeHTTP(w, r)
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

// TestExtAuthzRemovesHeaderBeforeDispatch covers scenario 6.
func TestExtAuthzRemovesHeaderBeforeDispatch(t *testing.T) {
	snap := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "secured",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/"}}},
			Backends:    []model.RouteBackend{{ServiceRef: "svc-A", Weight: 1}},
			ExtAuthz:    &model.ExtAuthzPolicy{Target: "authz:9191"},
		}},
	}
	store := publishedStore(t, snap)

	var sawAuthHeader string
	upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
		sawAuthHeader = req.Header.Get("Authorization")
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}, nil
	})

	o := New(store, upstream, 8080, WithAuthzDialer(func(target string) (extauthz.Client, error) {
		return fakeAuthzClient{resp: &authv3.CheckResponse{
			Status: &rpcstatus.Status{Code: 0},
			HttpResponse: &authv3.CheckResponse_OkResponse{
				OkResponse: &authv3.OkHttpResponse{HeadersToRemove: []string{"Authorization"}},
			},
		}}, nil
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://h/x", nil)
	r.Header.Set("Authorization", "Bearer secret")
	o.ServeHTTP(w, r)

	assert.Equal(t, 200, w.Code)
	assert.Empty(t, sawAuthHeader)
}

// TestAuthDeniedShortCircuits verifies a DENIED outcome never reaches the
// backend and surfaces the policy's status.
func TestAuthDeniedShortCircuits(t *testing.T) {
	snap := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "secured",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/"}}},
			Backends:    []model.RouteBackend{{ServiceRef: "svc-A", Weight: 1}},
			ExtAuthz:    &model.ExtAuthzPolicy{Target: "authz:9191"},
		}},
	}
	store := publishedStore(t, snap)

	dispatched := false
	upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
		dispatched = true
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}, nil
	})

	o := New(store, upstream, 8080, WithAuthzDialer(func(target string) (extauthz.Client, error) {
		return fakeAuthzClient{resp: &authv3.CheckResponse{
			Status: &rpcstatus.Status{Code: 7},
			HttpResponse: &authv3.CheckResponse_DeniedResponse{
				DeniedResponse: &authv3.DeniedHttpResponse{Body: "nope"},
			},
		}}, nil
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://h/x", nil)
	o.ServeHTTP(w, r)

	assert.False(t, dispatched)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestUnmatchedRouteReturns404 exercises the NoRoute rejection path.
func TestUnmatchedRouteReturns404(t *testing.T) {
	snap := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "health",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathExact, Value: "/health"}}},
			Backends:    []model.RouteBackend{{ServiceRef: "svc-A", Weight: 1}},
		}},
	}
	store := publishedStore(t, snap)
	upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
		t.Fatal("must not dispatch")
		return nil, nil
	})

	o := New(store, upstream, 8080)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://h/other", nil)
	o.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestWeightedSelectionIsInjectable verifies the orchestrator wires a
// caller-supplied Selector through to backend choice, per scenario 4's
// fixed-draw determinism.
func TestWeightedSelectionIsInjectable(t *testing.T) {
	snap := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "split",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/"}}},
			Backends: []model.RouteBackend{
				{ServiceRef: "A", Weight: 3},
				{ServiceRef: "B", Weight: 1},
			},
		}},
	}
	store := publishedStore(t, snap)

	var got string
	upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
		got = serviceRef
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}, nil
	})

	o := New(store, upstream, 8080, WithSelector(loadbalancer.New(func(int) int { return 3 })))
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://h/x", nil)
	o.ServeHTTP(w, r)

	assert.Equal(t, "B", got)
}

func strPtr(s string) *string { return &s }

type fakeAuthzClient struct {
	resp    *authv3.CheckResponse
	err     error
	lastReq **authv3.CheckRequest
}

func (f fakeAuthzClient) Check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	if f.lastReq != nil {
		*f.lastReq = req
	}
	return f.resp, f.err
}

// TestExtAuthzMergesDefaultContextExtensions verifies process-wide default
// context extensions are sent alongside (and overridable by) a route's own.
func TestExtAuthzMergesDefaultContextExtensions(t *testing.T) {
	snap := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "secured",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/"}}},
			Backends:    []model.RouteBackend{{ServiceRef: "svc-A", Weight: 1}},
			ExtAuthz: &model.ExtAuthzPolicy{
				Target:            "authz:9191",
				ContextExtensions: map[string]string{"env": "route-wins"},
			},
		}},
	}
	store := publishedStore(t, snap)

	upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}, nil
	})

	var captured *authv3.CheckRequest
	o := New(store, upstream, 8080,
		WithDefaultAuthzContextExtensions(map[string]string{"team": "checkout", "env": "default"}),
		WithAuthzDialer(func(target string) (extauthz.Client, error) {
			return fakeAuthzClient{
				resp: &authv3.CheckResponse{
					Status:       &rpcstatus.Status{Code: 0},
					HttpResponse: &authv3.CheckResponse_OkResponse{OkResponse: &authv3.OkHttpResponse{}},
				},
				lastReq: &captured,
			}, nil
		}),
	)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://h/x", nil)
	o.ServeHTTP(w, r)

	require.NotNil(t, captured)
	ext := captured.GetAttributes().GetContextExtensions()
	assert.Equal(t, "checkout", ext["team"])
	assert.Equal(t, "route-wins", ext["env"])
}

// TestExtAuthzResponseHeadersAreAppliedToFinalResponse verifies
// OkHttpResponse.ResponseHeadersToAdd reaches the client response.
func TestExtAuthzResponseHeadersAreAppliedToFinalResponse(t *testing.T) {
	snap := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "secured",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/"}}},
			Backends:    []model.RouteBackend{{ServiceRef: "svc-A", Weight: 1}},
			ExtAuthz:    &model.ExtAuthzPolicy{Target: "authz:9191"},
		}},
	}
	store := publishedStore(t, snap)

	upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}, nil
	})

	o := New(store, upstream, 8080, WithAuthzDialer(func(target string) (extauthz.Client, error) {
		return fakeAuthzClient{resp: &authv3.CheckResponse{
			Status: &rpcstatus.Status{Code: 0},
			HttpResponse: &authv3.CheckResponse_OkResponse{
				OkResponse: &authv3.OkHttpResponse{
					ResponseHeadersToAdd: []*corev3.HeaderValueOption{
						{Header: &corev3.HeaderValue{Key: "x-authz-subject", Value: "user-42"}},
					},
				},
			},
		}}, nil
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://h/x", nil)
	o.ServeHTTP(w, r)

	assert.Equal(t, "user-42", w.Header().Get("x-authz-subject"))
}

// TestDispatchErrorKindsMapToShapedStatus covers §6/§7: ConnFailed and
// ProtocolError reported by an Upstream shape into 502 and PoolExhausted
// into 503. PoolExhausted is included because the production HTTPUpstream
// never produces it itself but a custom Upstream (e.g. a pooled gRPC or
// HBONE dialer) can.
func TestDispatchErrorKindsMapToShapedStatus(t *testing.T) {
	snap := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "api",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/"}}},
			Backends:    []model.RouteBackend{{ServiceRef: "svc-A", Weight: 1}},
		}},
	}
	store := publishedStore(t, snap)

	cases := []struct {
		kind   DispatchErrorKind
		status int
	}{
		{ConnFailed, http.StatusBadGateway},
		{ProtocolError, http.StatusBadGateway},
		{PoolExhausted, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
			return nil, &DispatchError{Kind: c.kind}
		})
		o := New(store, upstream, 8080)
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "http://h/x", nil)
		o.ServeHTTP(w, r)
		assert.Equal(t, c.status, w.Code, "kind=%s", c.kind)
	}
}

// TestRepublishDuringDispatchDoesNotDisruptInFlightRequest covers §4.1's
// invariant that a request uses exactly one Handle from acceptance to
// completion: a request already dispatching against the original Snapshot
// must keep resolving to its original backend even if Store.Publish swaps
// in a new Snapshot while the backend call is still in flight.
func TestRepublishDuringDispatchDoesNotDisruptInFlightRequest(t *testing.T) {
	original := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "api",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/api"}}},
			Backends:    []model.RouteBackend{{ServiceRef: "svc-original", Weight: 1}},
		}},
	}
	store := publishedStore(t, original)

	reachedDispatch := make(chan struct{})
	releaseDispatch := make(chan struct{})
	var gotServiceRef string
	upstream := UpstreamFunc(func(ctx context.Context, serviceRef string, port int, req *http.Request) (*http.Response, error) {
		gotServiceRef = serviceRef
		close(reachedDispatch)
		<-releaseDispatch
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: http.NoBody}, nil
	})

	o := New(store, upstream, 8080)

	done := make(chan struct{})
	w := httptest.NewRecorder()
	go func() {
		r := httptest.NewRequest(http.MethodGet, "http://h/api/users", nil)
		o.ServeHTTP(w, r)
		close(done)
	}()

	select {
	case <-reachedDispatch:
	case <-time.After(time.Second):
		t.Fatal("request never reached dispatch")
	}

	republished := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{{
			Name:        "api",
			ListenerRef: "l1",
			Matches:     []model.RouteMatch{{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/api"}}},
			Backends:    []model.RouteBackend{{ServiceRef: "svc-replaced", Weight: 1}},
		}},
	}
	require.NoError(t, model.Validate(republished))
	store.Publish(republished)

	close(releaseDispatch)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("request never completed")
	}

	assert.Equal(t, "svc-original", gotServiceRef)
	assert.Equal(t, 200, w.Code)

	h, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "svc-replaced", h.Snapshot.Routes[0].Backends[0].ServiceRef)
}
