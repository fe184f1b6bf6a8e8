// Package headermodifier implements request_header_modifier and
// response_header_modifier (§3/§4.4), grounded on skipper's
// filters/builtin/mod_header.go and filters/headerfilter.go header
// manipulation style, generalized from skipper's single name/value filter
// to the add/set/remove batch the model carries.
package headermodifier

import (
	"net/http"
	"strings"

	"github.com/agentgateway/agentgateway/filters"
	"github.com/agentgateway/agentgateway/model"
)

// protectedNames cannot be removed by a header modifier: the pseudo-headers
// and Host, per §4.4.
var protectedNames = map[string]bool{
	":method":    true,
	":path":      true,
	":authority": true,
	":scheme":    true,
	"host":       true,
}

// Apply mutates headers in place per §4.4's fixed order: remove, then set,
// then add. It is shared by the request/response filter below, by the
// backend selector's per-backend filters, and by the ExtAuthz client's OK
// outcome header mutations -- everywhere §3's HeaderModifier semantics
// apply.
func Apply(headers http.Header, mod *model.HeaderModifier) {
	if mod == nil {
		return
	}
	for _, name := range mod.Remove {
		if protectedNames[strings.ToLower(name)] {
			continue
		}
		headers.Del(name)
	}
	for _, kv := range mod.Set {
		headers.Del(kv.Name)
		headers.Set(kv.Name, kv.Value)
	}
	for _, kv := range mod.Add {
		headers.Add(kv.Name, kv.Value)
	}
}

type filter struct {
	phase filters.Phase
	mod   *model.HeaderModifier
}

// New constructs a Filter for the given phase and HeaderModifier config.
// phase must be filters.PhaseRequest for request_header_modifier or
// filters.PhaseResponse for response_header_modifier.
func New(phase filters.Phase, mod *model.HeaderModifier) filters.Filter {
	return &filter{phase: phase, mod: mod}
}

func (f *filter) Name() string { return "header_modifier" }

func (f *filter) Phase() filters.Phase { return f.phase }

func (f *filter) Apply(ctx *filters.FilterContext) filters.Result {
	switch f.phase {
	case filters.PhaseRequest:
		Apply(ctx.Request.Header, f.mod)
		if setsHost(f.mod) {
			if h := lastSetValue(f.mod, "host"); h != "" {
				ctx.Request.Host = h
			}
		}
	case filters.PhaseResponse:
		if ctx.Response != nil {
			Apply(ctx.Response.Header, f.mod)
		}
	}
	return filters.Continue()
}

func setsHost(mod *model.HeaderModifier) bool {
	for _, kv := range mod.Set {
		if strings.EqualFold(kv.Name, "host") {
			return true
		}
	}
	return false
}

func lastSetValue(mod *model.HeaderModifier, name string) string {
	v := ""
	for _, kv := range mod.Set {
		if strings.EqualFold(kv.Name, name) {
			v = kv.Value
		}
	}
	return v
}
