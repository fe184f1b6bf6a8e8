package redirect

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgateway/agentgateway/filters"
	"github.com/agentgateway/agentgateway/model"
)

func TestRedirectSubstitutesSchemeKeepsRest(t *testing.T) {
	scheme := "https"
	req, err := http.NewRequest("GET", "http://h/old/x?y=1", nil)
	require.NoError(t, err)
	req.Host = "h"

	f := New(&model.RequestRedirect{Scheme: &scheme, Status: 301})
	ctx := filters.NewFilterContext(req, "/old")
	result := f.Apply(ctx)

	require.Equal(t, filters.ResultShortCircuit, result.Kind)
	assert.Equal(t, 301, result.Response.StatusCode)
	assert.Equal(t, "https://h/old/x?y=1", result.Response.Header.Get("Location"))
}

func TestRedirectPrefixPreservesSuffix(t *testing.T) {
	full := "/new"
	req, _ := http.NewRequest("GET", "http://h/old/x", nil)
	req.URL = &url.URL{Scheme: "http", Host: "h", Path: "/old/x"}
	req.Host = "h"

	rw := &model.PathRewrite{Prefix: &full}
	f := New(&model.RequestRedirect{Path: rw, Status: 302})
	ctx := filters.NewFilterContext(req, "/old")
	result := f.Apply(ctx)

	assert.Equal(t, "http://h/new/x", result.Response.Header.Get("Location"))
}
