// Package mirror implements request_mirror (§3/§4.4): at most one mirror
// fork per filter per request, drawn from a uniform RNG against the
// configured percentage. This filter only stages the decision to mirror;
// the orchestrator clones the request once the request phase finishes
// entirely (route filters, backend selection, and backend filters), so the
// mirrored request carries the state as of the end of request-phase
// filters rather than the state at the moment this filter happened to run.
// Its response is always discarded.
package mirror

import (
	"github.com/agentgateway/agentgateway/filters"
	"github.com/agentgateway/agentgateway/model"
)

type filter struct {
	cfg *model.RequestMirror
}

func New(cfg *model.RequestMirror) filters.Filter {
	return &filter{cfg: cfg}
}

func (f *filter) Name() string { return "request_mirror" }

func (f *filter) Phase() filters.Phase { return filters.PhaseRequest }

func (f *filter) Apply(ctx *filters.FilterContext) filters.Result {
	draw := ctx.Rand() * 100
	if draw >= f.cfg.Percentage {
		return filters.Continue()
	}

	ctx.Mirrors = append(ctx.Mirrors, filters.MirrorRequest{
		BackendRef: f.cfg.BackendRef,
		Port:       f.cfg.Port,
	})
	return filters.Continue()
}
