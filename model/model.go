// Package model defines the configuration data model that the routing core
// consults: binds, listeners, routes, backends, filters and traffic
// policies, as received from the configuration wire schema.
package model

import (
	"regexp"
	"time"
)

// Protocol is the wire protocol a Listener accepts.
type Protocol string

const (
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
	ProtocolTLS   Protocol = "TLS"
	ProtocolTCP   Protocol = "TCP"
	ProtocolHBONE Protocol = "HBONE"
)

// Bind identifies a listening socket. Port is unique across all Binds in a
// Snapshot.
type Bind struct {
	Name string
	Port int
}

// TLSConfig carries the certificate material for a TLS-terminating Listener.
// Storage/provisioning of the material is an external collaborator's
// concern; the core only needs to know a Listener is TLS-capable.
type TLSConfig struct {
	CertPEM []byte
	KeyPEM  []byte
}

// Listener is a logical endpoint on a Bind, optionally disambiguated by SNI
// or Host header.
type Listener struct {
	Name     string
	BindRef  string
	Group    string
	Hostname string // optional; empty means the wildcard/default listener
	Protocol Protocol
	TLS      *TLSConfig
}

// PathMatchKind selects how PathMatch.Value is interpreted.
type PathMatchKind int

const (
	PathExact PathMatchKind = iota
	PathPrefix
	PathRegex
)

// PathMatch matches the request's :path pseudo-header.
type PathMatch struct {
	Kind  PathMatchKind
	Value string

	// regex is populated by Validate for PathRegex matches.
	regex *regexp.Regexp
}

// Regex returns the compiled pattern for a PathRegex match, or nil.
func (p *PathMatch) Regex() *regexp.Regexp { return p.regex }

// StringMatchKind selects how a string-valued match compares.
type StringMatchKind int

const (
	StringExact StringMatchKind = iota
	StringRegex
)

// HeaderMatch matches a single request header by name, case-insensitively.
type HeaderMatch struct {
	Name  string
	Kind  StringMatchKind
	Value string

	regex *regexp.Regexp
}

// Regex returns the compiled pattern for a StringRegex match, or nil.
func (h *HeaderMatch) Regex() *regexp.Regexp { return h.regex }

// QueryMatch matches a single query parameter by name, case-sensitively.
type QueryMatch struct {
	Name  string
	Kind  StringMatchKind
	Value string

	regex *regexp.Regexp
}

// Regex returns the compiled pattern for a StringRegex match, or nil.
func (q *QueryMatch) Regex() *regexp.Regexp { return q.regex }

// RouteMatch is a disjunction unit: a request matches the owning Route if
// ANY RouteMatch in Route.Matches matches, and a RouteMatch matches when ALL
// of its populated sub-conditions match.
type RouteMatch struct {
	Path        *PathMatch
	Headers     []HeaderMatch
	Method      string // empty means absent (method not constrained)
	QueryParams []QueryMatch
}

// HeaderKV is a literal header name/value pair for HeaderModifier.
type HeaderKV struct {
	Name  string
	Value string
}

// HeaderModifier adds, sets or removes request/response headers. Order of
// application within one filter is fixed: remove, then set, then add.
type HeaderModifier struct {
	Add    []HeaderKV
	Set    []HeaderKV
	Remove []string
}

// PathRewrite describes a path transform: exactly one of Full or Prefix is
// populated.
type PathRewrite struct {
	Full   *string
	Prefix *string
}

// RequestRedirect emits an immediate response and short-circuits the
// pipeline.
type RequestRedirect struct {
	Scheme *string
	Host   *string
	Port   *int
	Path   *PathRewrite
	Status int
}

// AllowedRedirectStatuses is the closed set of statuses §3 permits for
// RequestRedirect.
var AllowedRedirectStatuses = map[int]bool{
	301: true, 302: true, 303: true, 307: true, 308: true,
}

// UrlRewrite mutates the outbound request target; it has no response side
// effect and never affects matching, which has already completed.
type UrlRewrite struct {
	Host *string
	Path *PathRewrite
}

// RequestMirror forks a fire-and-forget clone of the outbound request to a
// secondary backend for a percentage of requests.
type RequestMirror struct {
	BackendRef string
	Port       int
	Percentage float64
}

// FilterKind discriminates the RouteFilter tagged variant.
type FilterKind int

const (
	FilterRequestHeaderModifier FilterKind = iota
	FilterResponseHeaderModifier
	FilterRequestRedirect
	FilterUrlRewrite
	FilterRequestMirror
)

func (k FilterKind) String() string {
	switch k {
	case FilterRequestHeaderModifier:
		return "request_header_modifier"
	case FilterResponseHeaderModifier:
		return "response_header_modifier"
	case FilterRequestRedirect:
		return "request_redirect"
	case FilterUrlRewrite:
		return "url_rewrite"
	case FilterRequestMirror:
		return "request_mirror"
	default:
		return "unknown"
	}
}

// RouteFilter is a tagged variant over the five supported filter kinds. Only
// the field matching Kind is populated.
type RouteFilter struct {
	Kind FilterKind

	HeaderModifier *HeaderModifier
	Redirect       *RequestRedirect
	URLRewrite     *UrlRewrite
	Mirror         *RequestMirror
}

// RouteBackend is one weighted member of a Route's backend set. A Weight of
// zero means the backend is never selected.
type RouteBackend struct {
	ServiceRef string
	Weight     int
	Port       int
	Filters    []RouteFilter
}

// TrafficPolicy bounds the lifetime of a request against a Route.
type TrafficPolicy struct {
	RequestTimeout        *time.Duration
	BackendRequestTimeout *time.Duration
}

// AuthzFailureMode controls behavior on ExtAuthz transport failure.
type AuthzFailureMode int

const (
	AuthzFailClosed AuthzFailureMode = iota // default: deny
	AuthzFailOpen
)

// ExtAuthzPolicy configures the external authorization exchange for a Route.
type ExtAuthzPolicy struct {
	Target            string // dial target for the authorization service
	FailureMode       AuthzFailureMode
	ContextExtensions map[string]string
}

// Route is a match-and-action rule attached to a Listener.
type Route struct {
	Name          string
	ListenerRef   string
	Section       string
	Hostnames     []string
	Matches       []RouteMatch
	Filters       []RouteFilter
	Backends      []RouteBackend
	TrafficPolicy TrafficPolicy
	ExtAuthz      *ExtAuthzPolicy
}

// Snapshot is the closure of all configuration entities: an immutable,
// fully validated configuration instance. The derived Matcher Index is
// built and held separately by package matcher/snapshot to avoid a layering
// cycle; Snapshot itself is pure data, matching the wire schema.
type Snapshot struct {
	Binds     []Bind
	Listeners []Listener
	Routes    []Route
}
