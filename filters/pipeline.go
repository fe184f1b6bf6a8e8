package filters

// Pipeline executes an ordered list of Filters sharing a single Phase,
// stopping at the first Filter that returns anything other than Continue.
type Pipeline struct {
	filters []Filter
}

// NewPipeline builds a Pipeline from filters already filtered down to one
// Phase by the caller (the orchestrator runs request-phase filters before
// dispatch and response-phase filters after, per §4.4).
func NewPipeline(fs []Filter) *Pipeline {
	return &Pipeline{filters: fs}
}

// Run executes every filter in order and returns the first non-Continue
// Result, or Continue if every filter continued.
func (p *Pipeline) Run(ctx *FilterContext) Result {
	for _, f := range p.filters {
		switch r := f.Apply(ctx); r.Kind {
		case ResultContinue:
			continue
		default:
			return r
		}
	}
	return Continue()
}
