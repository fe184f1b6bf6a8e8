// Package urlrewrite implements url_rewrite (§3/§4.4): mutates the
// outbound request's authority and/or path. It has no response side
// effect and never affects matching, which has already completed by the
// time a Filter runs.
package urlrewrite

import (
	"github.com/agentgateway/agentgateway/filters"
	"github.com/agentgateway/agentgateway/model"
)

type filter struct {
	cfg *model.UrlRewrite
}

func New(cfg *model.UrlRewrite) filters.Filter {
	return &filter{cfg: cfg}
}

func (f *filter) Name() string { return "url_rewrite" }

func (f *filter) Phase() filters.Phase { return filters.PhaseRequest }

func (f *filter) Apply(ctx *filters.FilterContext) filters.Result {
	if f.cfg.Host != nil {
		ctx.Request.Host = *f.cfg.Host
		ctx.Request.URL.Host = *f.cfg.Host
	}
	if f.cfg.Path != nil {
		ctx.Request.URL.Path = filters.RewritePath(ctx.MatchedPathPrefix, f.cfg.Path, ctx.Request.URL.Path)
	}
	return filters.Continue()
}
