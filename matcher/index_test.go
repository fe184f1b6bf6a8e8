package matcher

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgateway/agentgateway/model"
)

func buildSnapshot(t *testing.T) *model.Snapshot {
	t.Helper()
	s := &model.Snapshot{
		Binds:     []model.Bind{{Name: "b1", Port: 8080}},
		Listeners: []model.Listener{{Name: "l1", BindRef: "b1", Protocol: model.ProtocolHTTP}},
		Routes: []model.Route{
			{
				Name:        "health",
				ListenerRef: "l1",
				Matches: []model.RouteMatch{
					{Path: &model.PathMatch{Kind: model.PathExact, Value: "/health"}},
				},
				Backends: []model.RouteBackend{{ServiceRef: "svc-health", Weight: 1}},
			},
			{
				Name:        "api",
				ListenerRef: "l1",
				Matches: []model.RouteMatch{
					{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/api"}},
				},
				Backends: []model.RouteBackend{{ServiceRef: "svc-api", Weight: 1}},
			},
			{
				Name:        "catchall",
				ListenerRef: "l1",
				Matches: []model.RouteMatch{
					{Path: &model.PathMatch{Kind: model.PathPrefix, Value: "/"}},
				},
				Backends: []model.RouteBackend{{ServiceRef: "svc-root", Weight: 1}},
			},
		},
	}
	require.NoError(t, model.Validate(s))
	return s
}

func req(path string) *RequestView {
	return &RequestView{
		Authority: "h",
		Path:      path,
		Method:    "GET",
		Headers:   http.Header{},
		Query:     url.Values{},
	}
}

func TestResolveExactBeatsPrefix(t *testing.T) {
	idx := Build(buildSnapshot(t))
	_, route, _, ok := idx.Resolve(8080, "h", req("/health"))
	require.True(t, ok)
	assert.Equal(t, "health", route.Name)
}

func TestResolveLongerPrefixWins(t *testing.T) {
	idx := Build(buildSnapshot(t))
	_, route, _, ok := idx.Resolve(8080, "h", req("/api/users"))
	require.True(t, ok)
	assert.Equal(t, "api", route.Name)
}

func TestResolveFallsBackToCatchall(t *testing.T) {
	idx := Build(buildSnapshot(t))
	_, route, _, ok := idx.Resolve(8080, "h", req("/healthz"))
	require.True(t, ok)
	assert.Equal(t, "catchall", route.Name)
}

func TestResolveUnknownBindFails(t *testing.T) {
	idx := Build(buildSnapshot(t))
	_, _, _, ok := idx.Resolve(9999, "h", req("/x"))
	assert.False(t, ok)
}

func TestPrefixSegmentBoundary(t *testing.T) {
	assert.True(t, matchesPrefixSegment("/a", "/a"))
	assert.True(t, matchesPrefixSegment("/a", "/a/b"))
	assert.False(t, matchesPrefixSegment("/a", "/ab"))
}

func TestWildcardHostname(t *testing.T) {
	assert.True(t, matchesHostname("*.x.y", "a.x.y"))
	assert.True(t, matchesHostname("*.x.y", "b.c.x.y"))
	assert.False(t, matchesHostname("*.x.y", "x.y"))
}

func TestDeterministicResolution(t *testing.T) {
	idx := Build(buildSnapshot(t))
	r := req("/api/x")
	_, first, _, _ := idx.Resolve(8080, "h", r)
	for i := 0; i < 10; i++ {
		_, again, _, ok := idx.Resolve(8080, "h", req("/api/x"))
		require.True(t, ok)
		assert.Equal(t, first.Name, again.Name)
	}
}
