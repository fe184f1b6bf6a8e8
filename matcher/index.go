// Package matcher builds the pre-computed lookup structures the core
// consults on every request: binds by port, listeners by bind keyed by
// SNI/Host, and per-listener routes sorted by match precedence. It is built
// once per Snapshot and never mutated afterward.
package matcher

import (
	"sort"

	"github.com/agentgateway/agentgateway/model"
)

type listenerEntry struct {
	listener  *model.Listener
	rank      int
	suffixLen int
}

type routeEntry struct {
	route       *model.Route
	hostRank    int
	hostSuffix  int
	matchRank   specificity
	configOrder int
}

// Index is the Matcher Index of §4.2: binds_by_port, per-bind listeners
// sorted by hostname specificity, and per-listener routes sorted by
// hostname specificity then match specificity then configuration order.
type Index struct {
	bindsByPort      map[int]*model.Bind
	listenersByBind  map[string][]listenerEntry
	routesByListener map[string][]routeEntry
}

// Build computes an Index from a Snapshot. The Snapshot must already have
// passed model.Validate (regexes compiled) before Build is called.
func Build(s *model.Snapshot) *Index {
	idx := &Index{
		bindsByPort:      make(map[int]*model.Bind),
		listenersByBind:  make(map[string][]listenerEntry),
		routesByListener: make(map[string][]routeEntry),
	}

	for i := range s.Binds {
		b := &s.Binds[i]
		idx.bindsByPort[b.Port] = b
	}

	for i := range s.Listeners {
		l := &s.Listeners[i]
		rank, suffix := hostnameRank(l.Hostname)
		idx.listenersByBind[l.BindRef] = append(idx.listenersByBind[l.BindRef], listenerEntry{
			listener:  l,
			rank:      rank,
			suffixLen: suffix,
		})
	}
	for bindRef, entries := range idx.listenersByBind {
		sorted := entries
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].rank != sorted[j].rank {
				return sorted[i].rank > sorted[j].rank
			}
			return sorted[i].suffixLen > sorted[j].suffixLen
		})
		idx.listenersByBind[bindRef] = sorted
	}

	for i := range s.Routes {
		r := &s.Routes[i]
		hostRank, hostSuffix := bestHostnameRank(r.Hostnames)
		idx.routesByListener[r.ListenerRef] = append(idx.routesByListener[r.ListenerRef], routeEntry{
			route:       r,
			hostRank:    hostRank,
			hostSuffix:  hostSuffix,
			matchRank:   bestMatchSpecificity(r.Matches),
			configOrder: i,
		})
	}
	for listenerRef, entries := range idx.routesByListener {
		sorted := entries
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if a.hostRank != b.hostRank {
				return a.hostRank > b.hostRank
			}
			if a.hostSuffix != b.hostSuffix {
				return a.hostSuffix > b.hostSuffix
			}
			if c := compareSpecificity(a.matchRank, b.matchRank); c != 0 {
				return c > 0
			}
			return a.configOrder < b.configOrder
		})
		idx.routesByListener[listenerRef] = sorted
	}

	return idx
}

// BindByPort looks up a Bind by its listening port.
func (idx *Index) BindByPort(port int) (*model.Bind, bool) {
	b, ok := idx.bindsByPort[port]
	return b, ok
}

// SelectListener picks the most specific Listener on bind whose hostname
// predicate matches hostOrSNI. For TLS protocols the caller passes the SNI;
// for HTTP the caller passes the Host header value.
func (idx *Index) SelectListener(bind *model.Bind, hostOrSNI string) (*model.Listener, bool) {
	for _, e := range idx.listenersByBind[bind.Name] {
		if matchesHostname(e.listener.Hostname, hostOrSNI) {
			return e.listener, true
		}
	}
	return nil, false
}

// SelectRoute picks the most specific Route on listener matching req,
// checking both the route's own hostname predicate and its RouteMatch
// disjunction. It also returns the specific RouteMatch that matched (nil
// if the winning route carries no match rules at all), so callers can
// recover the matched path prefix for url_rewrite/request_redirect's
// prefix mode (§9).
func (idx *Index) SelectRoute(listener *model.Listener, req *RequestView) (*model.Route, *model.RouteMatch, bool) {
	for _, e := range idx.routesByListener[listener.Name] {
		if !anyHostnameMatches(e.route.Hostnames, req.Authority) {
			continue
		}
		if m, ok := winningMatch(e.route.Matches, req); ok {
			return e.route, m, true
		}
	}
	return nil, nil, false
}

// Resolve is the single entry point described in §4.2:
// resolve(bind_port, sni, request) -> (Listener, Route). sniOrHost should be
// the SNI for TLS-family listeners and the Host header for HTTP listeners;
// callers without TLS pass the Host header in both roles.
func (idx *Index) Resolve(bindPort int, sniOrHost string, req *RequestView) (*model.Listener, *model.Route, *model.RouteMatch, bool) {
	bind, ok := idx.BindByPort(bindPort)
	if !ok {
		return nil, nil, nil, false
	}
	listener, ok := idx.SelectListener(bind, sniOrHost)
	if !ok {
		return nil, nil, nil, false
	}
	route, match, ok := idx.SelectRoute(listener, req)
	if !ok {
		return listener, nil, nil, false
	}
	return listener, route, match, true
}

// MatchedPathPrefix returns the literal prefix string a winning PathMatch
// contributed, or "" if the match was not a prefix match (or there was no
// match rule at all).
func MatchedPathPrefix(m *model.RouteMatch) string {
	if m == nil || m.Path == nil || m.Path.Kind != model.PathPrefix {
		return ""
	}
	return m.Path.Value
}
