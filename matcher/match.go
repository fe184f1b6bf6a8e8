package matcher

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/agentgateway/agentgateway/model"
)

// RequestView is the parsed request view the core matches against: the
// pseudo-headers plus real headers and query, per §4.3. Path matching
// always operates on this view's Path, taken before any rewrite.
type RequestView struct {
	Authority string
	Path      string
	Method    string
	Headers   http.Header
	Query     url.Values
}

// specificity is the 5-tuple tie-break order from §4.2, compared
// lexicographically with higher meaning more specific:
//  0: path rank (exact=3, prefix=2, regex=1, absent=0)
//  1: prefix length (only meaningful when path rank is "prefix")
//  2: header condition count
//  3: method present (1) vs absent (0)
//  4: query condition count
type specificity [5]int

func lessSpecific(a, b specificity) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// compareSpecificity returns >0 if a is more specific than b, <0 if less,
// 0 if equal.
func compareSpecificity(a, b specificity) int {
	for i := range a {
		if a[i] != b[i] {
			return a[i] - b[i]
		}
	}
	return 0
}

func matchSpecificity(m model.RouteMatch) specificity {
	var s specificity
	if m.Path != nil {
		switch m.Path.Kind {
		case model.PathExact:
			s[0] = 3
		case model.PathPrefix:
			s[0] = 2
			s[1] = len(m.Path.Value)
		case model.PathRegex:
			s[0] = 1
		}
	}
	s[2] = len(m.Headers)
	if m.Method != "" {
		s[3] = 1
	}
	s[4] = len(m.QueryParams)
	return s
}

// bestMatchSpecificity is the most specific RouteMatch in a route's
// disjunction, used to rank the owning route against its listener-mates.
func bestMatchSpecificity(matches []model.RouteMatch) specificity {
	var best specificity
	for i, m := range matches {
		s := matchSpecificity(m)
		if i == 0 || lessSpecific(best, s) {
			best = s
		}
	}
	return best
}

// matchesRoute reports whether req satisfies ANY RouteMatch in matches (or
// unconditionally, if matches is empty -- a route with no match rules
// matches every request on its listener/hostname).
func matchesRoute(matches []model.RouteMatch, req *RequestView) bool {
	_, ok := winningMatch(matches, req)
	return ok
}

// winningMatch returns the first RouteMatch in the disjunction that
// matches req, or ok=false if none does. A nil, ok=true result means the
// route carries no match rules and matches unconditionally.
func winningMatch(matches []model.RouteMatch, req *RequestView) (*model.RouteMatch, bool) {
	if len(matches) == 0 {
		return nil, true
	}
	for i := range matches {
		if matchesOne(matches[i], req) {
			return &matches[i], true
		}
	}
	return nil, false
}

func matchesOne(m model.RouteMatch, req *RequestView) bool {
	if m.Path != nil && !matchesPath(m.Path, req.Path) {
		return false
	}
	if m.Method != "" && m.Method != req.Method {
		return false
	}
	for _, h := range m.Headers {
		if !matchesHeader(h, req.Headers) {
			return false
		}
	}
	for _, q := range m.QueryParams {
		if !matchesQuery(q, req.Query) {
			return false
		}
	}
	return true
}

func matchesPath(p *model.PathMatch, path string) bool {
	switch p.Kind {
	case model.PathExact:
		return p.Value == path
	case model.PathPrefix:
		return matchesPrefixSegment(p.Value, path)
	case model.PathRegex:
		rx := p.Regex()
		return rx != nil && rx.MatchString(path)
	default:
		return false
	}
}

// matchesPrefixSegment implements the segment-aligned prefix rule: prefix
// "/a" accepts "/a" and "/a/b" but rejects "/ab".
func matchesPrefixSegment(prefix, path string) bool {
	if path == prefix {
		return true
	}
	trimmed := strings.TrimSuffix(prefix, "/")
	return strings.HasPrefix(path, trimmed+"/")
}

func matchesHeader(h model.HeaderMatch, headers http.Header) bool {
	values := headers.Values(h.Name)
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		switch h.Kind {
		case model.StringExact:
			if v == h.Value {
				return true
			}
		case model.StringRegex:
			if rx := h.Regex(); rx != nil && rx.MatchString(v) {
				return true
			}
		}
	}
	return false
}

func matchesQuery(q model.QueryMatch, query url.Values) bool {
	values, ok := query[q.Name]
	if !ok || len(values) == 0 {
		return false
	}
	for _, v := range values {
		switch q.Kind {
		case model.StringExact:
			if v == q.Value {
				return true
			}
		case model.StringRegex:
			if rx := q.Regex(); rx != nil && rx.MatchString(v) {
				return true
			}
		}
	}
	return false
}
