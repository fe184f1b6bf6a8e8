package model

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ValidationError aggregates every violation found in a single Validate
// pass, in the order encountered, instead of failing on the first one --
// mirroring eskip.Parse's diagnostic style of reporting everything wrong
// with a document at once.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid snapshot: %d violation(s): %s", len(e.Violations), strings.Join(e.Violations, "; "))
}

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

// Validate checks a Snapshot for internal consistency and compiles every
// regex-based match in place. It returns a *ValidationError
// (never a bare error) when any violation is found. A Snapshot that fails
// validation must never replace the currently published one.
func Validate(s *Snapshot) error {
	verr := &ValidationError{}

	ports := map[int]string{}
	bindNames := map[string]bool{}
	for _, b := range s.Binds {
		bindNames[b.Name] = true
		if owner, ok := ports[b.Port]; ok {
			verr.add("bind %q: port %d already used by bind %q", b.Name, b.Port, owner)
			continue
		}
		ports[b.Port] = b.Name
	}

	listenerNames := map[string]bool{}
	hostnamesByBind := map[string][]string{}
	for i := range s.Listeners {
		l := &s.Listeners[i]
		listenerNames[l.Name] = true
		if l.BindRef == "" {
			verr.add("listener %q: empty bind_ref", l.Name)
		} else if !bindNames[l.BindRef] {
			verr.add("listener %q: bind_ref %q does not exist", l.Name, l.BindRef)
		}
		switch l.Protocol {
		case ProtocolHTTP, ProtocolHTTPS, ProtocolTLS, ProtocolTCP, ProtocolHBONE:
		default:
			verr.add("listener %q: unknown protocol %q", l.Name, l.Protocol)
		}
		if l.Protocol == ProtocolHTTP {
			hostnamesByBind[l.BindRef] = append(hostnamesByBind[l.BindRef], l.Hostname)
		}
	}
	for bindRef, hosts := range hostnamesByBind {
		seen := map[string]bool{}
		wildcards := 0
		for _, h := range hosts {
			if h == "" || h == "*" {
				wildcards++
				continue
			}
			if seen[h] {
				verr.add("bind %q: duplicate HTTP listener hostname %q", bindRef, h)
			}
			seen[h] = true
		}
		if wildcards > 1 {
			verr.add("bind %q: more than one wildcard/default HTTP listener", bindRef)
		}
	}

	// serviceBackendRefs collects every ServiceRef declared by any route's
	// Backends, across the whole snapshot, before the main loop below runs
	// validateFilters -- a request_mirror's backend_ref must resolve to one
	// of these, and by the time a given route's filters are checked, routes
	// processed later (or the route's own backends, declared after its
	// filters in the type) wouldn't have contributed theirs yet otherwise.
	serviceBackendRefs := map[string]bool{}
	for i := range s.Routes {
		for _, b := range s.Routes[i].Backends {
			serviceBackendRefs[b.ServiceRef] = true
		}
	}

	for i := range s.Routes {
		r := &s.Routes[i]
		if r.ListenerRef == "" {
			verr.add("route %q: empty listener_ref", r.Name)
		} else if !listenerNames[r.ListenerRef] {
			verr.add("route %q: listener_ref %q does not exist", r.Name, r.ListenerRef)
		}

		for mi := range r.Matches {
			m := &r.Matches[mi]
			if m.Path != nil {
				if err := compilePathMatch(m.Path); err != nil {
					verr.add("route %q match %d: path: %v", r.Name, mi, err)
				}
			}
			for hi := range m.Headers {
				if !httpguts.ValidHeaderFieldName(m.Headers[hi].Name) {
					verr.add("route %q match %d: header %q: invalid header field name", r.Name, mi, m.Headers[hi].Name)
				}
				if err := compileStringMatch(m.Headers[hi].Kind, m.Headers[hi].Value, &m.Headers[hi].regex); err != nil {
					verr.add("route %q match %d: header %q: %v", r.Name, mi, m.Headers[hi].Name, err)
				}
			}
			for qi := range m.QueryParams {
				if err := compileStringMatch(m.QueryParams[qi].Kind, m.QueryParams[qi].Value, &m.QueryParams[qi].regex); err != nil {
					verr.add("route %q match %d: query %q: %v", r.Name, mi, m.QueryParams[qi].Name, err)
				}
			}
		}

		validateFilters(verr, r.Name, "route", r.Filters, serviceBackendRefs)

		totalWeight := 0
		if len(r.Backends) == 0 {
			// empty backend set is permitted by the model; resolves to
			// Fail(NoBackend) at request time per §4.5.
		}
		for bi := range r.Backends {
			b := &r.Backends[bi]
			if b.Weight < 0 {
				verr.add("route %q backend %d: negative weight %d", r.Name, bi, b.Weight)
			}
			totalWeight += b.Weight
			validateFilters(verr, r.Name, fmt.Sprintf("backend[%d]", bi), b.Filters, serviceBackendRefs)
		}
		if len(r.Backends) > 0 && totalWeight == 0 {
			verr.add("route %q: all backends have weight 0, route can never select a backend", r.Name)
		}

		if r.TrafficPolicy.RequestTimeout != nil && *r.TrafficPolicy.RequestTimeout <= 0 {
			verr.add("route %q: non-positive request_timeout", r.Name)
		}
		if r.TrafficPolicy.BackendRequestTimeout != nil && *r.TrafficPolicy.BackendRequestTimeout <= 0 {
			verr.add("route %q: non-positive backend_request_timeout", r.Name)
		}
	}

	if len(verr.Violations) > 0 {
		return verr
	}
	return nil
}

func validateFilters(verr *ValidationError, routeName, scope string, filters []RouteFilter, serviceBackendRefs map[string]bool) {
	for fi := range filters {
		f := &filters[fi]
		switch f.Kind {
		case FilterRequestHeaderModifier, FilterResponseHeaderModifier:
			if f.HeaderModifier == nil {
				verr.add("route %q %s filter %d: %s missing payload", routeName, scope, fi, f.Kind)
				continue
			}
			validateHeaderNames(verr, routeName, scope, fi, f.Kind, f.HeaderModifier)
		case FilterRequestRedirect:
			if f.Redirect == nil {
				verr.add("route %q %s filter %d: request_redirect missing payload", routeName, scope, fi)
				continue
			}
			if !AllowedRedirectStatuses[f.Redirect.Status] {
				verr.add("route %q %s filter %d: request_redirect status %d not in allowed set", routeName, scope, fi, f.Redirect.Status)
			}
			if err := compilePathRewrite(f.Redirect.Path); err != nil {
				verr.add("route %q %s filter %d: request_redirect path: %v", routeName, scope, fi, err)
			}
		case FilterUrlRewrite:
			if f.URLRewrite == nil {
				verr.add("route %q %s filter %d: url_rewrite missing payload", routeName, scope, fi)
				continue
			}
			if err := compilePathRewrite(f.URLRewrite.Path); err != nil {
				verr.add("route %q %s filter %d: url_rewrite path: %v", routeName, scope, fi, err)
			}
		case FilterRequestMirror:
			if f.Mirror == nil {
				verr.add("route %q %s filter %d: request_mirror missing payload", routeName, scope, fi)
				continue
			}
			if f.Mirror.Percentage < 0 || f.Mirror.Percentage > 100 {
				verr.add("route %q %s filter %d: request_mirror percentage %v out of [0,100]", routeName, scope, fi, f.Mirror.Percentage)
			}
			if f.Mirror.BackendRef == "" {
				verr.add("route %q %s filter %d: request_mirror missing backend_ref", routeName, scope, fi)
			} else if !serviceBackendRefs[f.Mirror.BackendRef] {
				verr.add("route %q %s filter %d: request_mirror backend_ref %q does not match any route backend", routeName, scope, fi, f.Mirror.BackendRef)
			}
		default:
			verr.add("route %q %s filter %d: unknown filter kind %v", routeName, scope, fi, f.Kind)
		}
	}
}

// validateHeaderNames rejects header modifier field names that cannot
// appear on the wire at all (RFC 7230 token syntax), grounded on
// filters/auth/webhook.go's use of httpguts to vet header names supplied
// by config rather than hand-rolling a token-character check.
func validateHeaderNames(verr *ValidationError, routeName, scope string, fi int, kind FilterKind, mod *HeaderModifier) {
	check := func(name string) {
		if !httpguts.ValidHeaderFieldName(name) {
			verr.add("route %q %s filter %d: %s: invalid header field name %q", routeName, scope, fi, kind, name)
		}
	}
	for _, kv := range mod.Add {
		check(kv.Name)
	}
	for _, kv := range mod.Set {
		check(kv.Name)
	}
	for _, name := range mod.Remove {
		check(name)
	}
}

// compilePathRewrite checks a PathRewrite's shape: prefix/full are plain
// strings with nothing to compile, so the only violation is both being set.
func compilePathRewrite(p *PathRewrite) error {
	if p == nil {
		return nil
	}
	if p.Full != nil && p.Prefix != nil {
		return fmt.Errorf("both full and prefix set, exactly one expected")
	}
	return nil
}

func compilePathMatch(p *PathMatch) error {
	switch p.Kind {
	case PathExact, PathPrefix:
		return nil
	case PathRegex:
		rx, err := regexp.Compile(anchor(p.Value))
		if err != nil {
			return err
		}
		p.regex = rx
		return nil
	default:
		return fmt.Errorf("unknown path match kind %v", p.Kind)
	}
}

func compileStringMatch(kind StringMatchKind, value string, dest **regexp.Regexp) error {
	if kind != StringRegex {
		return nil
	}
	rx, err := regexp.Compile(value)
	if err != nil {
		return err
	}
	*dest = rx
	return nil
}

// anchor ensures a PathRegex matches the full path, per §3's "anchored
// full-path" rule, without requiring every config author to remember ^$.
func anchor(expr string) string {
	if strings.HasPrefix(expr, "^") && strings.HasSuffix(expr, "$") {
		return expr
	}
	return "^(?:" + expr + ")$"
}
