package proxy

import (
	"github.com/agentgateway/agentgateway/filters"
	"github.com/agentgateway/agentgateway/filters/headermodifier"
	"github.com/agentgateway/agentgateway/filters/mirror"
	"github.com/agentgateway/agentgateway/filters/redirect"
	"github.com/agentgateway/agentgateway/filters/urlrewrite"
	"github.com/agentgateway/agentgateway/model"
)

// buildFilter maps one RouteFilter to its runtime Filter. Unknown kinds are
// rejected by model.Validate before a Snapshot is ever published, so this
// never needs a default case that surfaces to a request.
func buildFilter(f model.RouteFilter) filters.Filter {
	switch f.Kind {
	case model.FilterRequestHeaderModifier:
		return headermodifier.New(filters.PhaseRequest, f.HeaderModifier)
	case model.FilterResponseHeaderModifier:
		return headermodifier.New(filters.PhaseResponse, f.HeaderModifier)
	case model.FilterRequestRedirect:
		return redirect.New(f.Redirect)
	case model.FilterUrlRewrite:
		return urlrewrite.New(f.URLRewrite)
	case model.FilterRequestMirror:
		return mirror.New(f.Mirror)
	default:
		return nil
	}
}

// buildPipeline converts a RouteFilter list into a phase-filtered Pipeline,
// preserving declaration order within the phase per §4.4.
func buildPipeline(rfs []model.RouteFilter, phase filters.Phase) *filters.Pipeline {
	var fs []filters.Filter
	for _, rf := range rfs {
		f := buildFilter(rf)
		if f != nil && f.Phase() == phase {
			fs = append(fs, f)
		}
	}
	return filters.NewPipeline(fs)
}
