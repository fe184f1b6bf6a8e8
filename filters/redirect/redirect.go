// Package redirect implements request_redirect (§3/§4.4): produces an
// immediate ShortCircuit response, substituting any provided scheme, host,
// port and path into the Location, preserving the query string and
// anything not explicitly overridden. Grounded on skipper's
// filters/builtin/redirect.go Location-construction style.
package redirect

import (
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/agentgateway/agentgateway/filters"
	"github.com/agentgateway/agentgateway/model"
)

type filter struct {
	cfg *model.RequestRedirect
}

func New(cfg *model.RequestRedirect) filters.Filter {
	return &filter{cfg: cfg}
}

func (f *filter) Name() string { return "request_redirect" }

func (f *filter) Phase() filters.Phase { return filters.PhaseRequest }

func (f *filter) Apply(ctx *filters.FilterContext) filters.Result {
	cfg := f.cfg
	req := ctx.Request

	scheme := req.URL.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if cfg.Scheme != nil {
		scheme = *cfg.Scheme
	}

	host := requestHost(req)
	if cfg.Host != nil {
		host = *cfg.Host
	}

	port := req.URL.Port()
	if cfg.Port != nil {
		port = strconv.Itoa(*cfg.Port)
	}

	path := req.URL.Path
	if cfg.Path != nil {
		path = filters.RewritePath(ctx.MatchedPathPrefix, cfg.Path, path)
	}

	hostport := host
	if port != "" {
		hostport = host + ":" + port
	}

	location := &url.URL{
		Scheme:   scheme,
		Host:     hostport,
		Path:     path,
		RawQuery: req.URL.RawQuery,
	}

	resp := &http.Response{
		StatusCode: cfg.Status,
		Header:     http.Header{"Location": []string{location.String()}},
		Body:       http.NoBody,
		Request:    req,
	}
	return filters.ShortCircuit(resp)
}

// requestHost mirrors skipper's getRequestHost: prefer an explicit Host
// header, fall back to the request's Host field, then the URL's.
func requestHost(req *http.Request) string {
	if h := req.Header.Get("Host"); h != "" {
		return stripPort(h)
	}
	if req.Host != "" {
		return stripPort(req.Host)
	}
	return req.URL.Hostname()
}

func stripPort(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
