// Package filtertest provides fakes for testing Filter implementations in
// isolation, grounded on skipper's filtertest package style of stand-ins
// for FilterContext.
package filtertest

import (
	"net/http"

	"github.com/agentgateway/agentgateway/filters"
)

// NewContext builds a ready-to-use FilterContext for a GET to target, with
// a fixed RNG for deterministic tests.
func NewContext(target, matchedPrefix string, rng func() float64) *filters.FilterContext {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		panic(err)
	}
	ctx := filters.NewFilterContext(req, matchedPrefix)
	if rng != nil {
		ctx.WithRNG(rng)
	}
	return ctx
}
