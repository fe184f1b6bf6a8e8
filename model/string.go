package model

import (
	"fmt"
	"strings"
)

// String renders a compact, human-readable summary of a Route for logs and
// debug dumps, in the spirit of eskip's route pretty-printer -- scoped down
// to this model's fields since filters here are typed Go values, not an
// eskip-style textual DSL.
func (r *Route) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: listener=%s hosts=%s", r.Name, r.ListenerRef, strings.Join(r.Hostnames, ","))
	for _, m := range r.Matches {
		b.WriteString(" match(")
		if m.Path != nil {
			fmt.Fprintf(&b, "path=%s", m.Path.describe())
		}
		if m.Method != "" {
			fmt.Fprintf(&b, " method=%s", m.Method)
		}
		for _, h := range m.Headers {
			fmt.Fprintf(&b, " header[%s]", h.Name)
		}
		for _, q := range m.QueryParams {
			fmt.Fprintf(&b, " query[%s]", q.Name)
		}
		b.WriteString(")")
	}
	for _, f := range r.Filters {
		fmt.Fprintf(&b, " -> %s", f.Kind)
	}
	for _, be := range r.Backends {
		fmt.Fprintf(&b, " backend(%s w=%d)", be.ServiceRef, be.Weight)
	}
	return b.String()
}

func (p *PathMatch) describe() string {
	switch p.Kind {
	case PathExact:
		return "exact:" + p.Value
	case PathPrefix:
		return "prefix:" + p.Value
	case PathRegex:
		return "regex:" + p.Value
	default:
		return "?:" + p.Value
	}
}
