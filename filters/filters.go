// Package filters defines the Filter Pipeline of §4.4: a FilterContext
// carrying the mutable outbound request/response, a Filter interface with a
// declared Phase, and a Result a Filter returns to advance, short-circuit,
// or fail the pipeline. Grounded on skipper's filters.FilterContext /
// filters.Filter split between a narrow per-request context and stateless
// filter instances, generalized from skipper's string-argument filters to
// this core's closed, typed RouteFilter variants.
package filters

import (
	"math/rand"
	"net/http"
)

// Phase discriminates when a Filter runs in the pipeline.
type Phase int

const (
	PhaseRequest Phase = iota
	PhaseResponse
)

// MirrorRequest is staged by a request_mirror filter for the Timeout &
// Mirror Orchestrator to dispatch after request-phase filters complete.
type MirrorRequest struct {
	BackendRef string
	Port       int
	Request    *http.Request
}

// FilterContext is the mutable, per-request state a Filter observes and
// modifies. It is owned by the request task; no lock is required (§5).
type FilterContext struct {
	// Request is the outbound request under construction. Filters mutate it
	// in place.
	Request *http.Request

	// Response is populated only during PhaseResponse, after the upstream
	// call returns.
	Response *http.Response

	// MatchedPathPrefix is the literal prefix string the resolved route's
	// winning PathMatch contributed, used by request_redirect and
	// url_rewrite's prefix mode to preserve the request's matched-away
	// suffix per §4.4/§9.
	MatchedPathPrefix string

	// StateBag carries filter-to-filter and filter-to-orchestrator data.
	StateBag map[string]interface{}

	// Mirrors accumulates any MirrorRequest staged by request_mirror
	// filters during this pipeline run.
	Mirrors []MirrorRequest

	// rng is the uniform [0,1) source used by request_mirror's percentage
	// draw; injectable so tests can fix the draw sequence (scenario 4/§8).
	rng func() float64
}

// NewFilterContext constructs a FilterContext over req with the process
// default RNG.
func NewFilterContext(req *http.Request, matchedPrefix string) *FilterContext {
	return &FilterContext{
		Request:           req,
		MatchedPathPrefix: matchedPrefix,
		StateBag:          map[string]interface{}{},
		rng:               rand.Float64,
	}
}

// WithRNG overrides the uniform draw source, for deterministic tests.
func (c *FilterContext) WithRNG(rng func() float64) *FilterContext {
	c.rng = rng
	return c
}

func (c *FilterContext) Rand() float64 {
	if c.rng == nil {
		return rand.Float64()
	}
	return c.rng()
}

// ResultKind discriminates the outcome of applying one Filter.
type ResultKind int

const (
	ResultContinue ResultKind = iota
	ResultShortCircuit
	ResultFail
)

// Result is returned by Filter.Apply.
type Result struct {
	Kind ResultKind

	// Response is populated for ResultShortCircuit.
	Response *http.Response

	// Err is populated for ResultFail. It is declared as `error` rather
	// than *gatewayerr.Error to avoid filters depending on the gatewayerr
	// package for the common case (only the ext-authz/backend-selector
	// integration points construct one); callers type-assert it.
	Err error
}

func Continue() Result { return Result{Kind: ResultContinue} }

func ShortCircuit(resp *http.Response) Result {
	return Result{Kind: ResultShortCircuit, Response: resp}
}

func Fail(err error) Result {
	return Result{Kind: ResultFail, Err: err}
}

// Filter is one stage of the pipeline. Instances are stateless and safe for
// concurrent use across requests, matching skipper's Filter contract.
type Filter interface {
	Name() string
	Phase() Phase
	Apply(ctx *FilterContext) Result
}
