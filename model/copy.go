package model

// CopyHeaderKVs returns a deep copy of a HeaderKV slice, grounded on
// eskip.Copy's style of never sharing backing arrays between a Snapshot and
// any derived per-request clone.
func CopyHeaderKVs(in []HeaderKV) []HeaderKV {
	if in == nil {
		return nil
	}
	out := make([]HeaderKV, len(in))
	copy(out, in)
	return out
}

// CopyStrings returns a deep copy of a string slice.
func CopyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// CopyHeaderModifier returns a deep copy of a HeaderModifier, or nil.
func CopyHeaderModifier(in *HeaderModifier) *HeaderModifier {
	if in == nil {
		return nil
	}
	return &HeaderModifier{
		Add:    CopyHeaderKVs(in.Add),
		Set:    CopyHeaderKVs(in.Set),
		Remove: CopyStrings(in.Remove),
	}
}

// CopyPathRewrite returns a deep copy of a PathRewrite, or nil.
func CopyPathRewrite(in *PathRewrite) *PathRewrite {
	if in == nil {
		return nil
	}
	out := &PathRewrite{}
	if in.Full != nil {
		v := *in.Full
		out.Full = &v
	}
	if in.Prefix != nil {
		v := *in.Prefix
		out.Prefix = &v
	}
	return out
}

// CopyFilter returns a deep copy of a single RouteFilter.
func CopyFilter(in RouteFilter) RouteFilter {
	out := RouteFilter{Kind: in.Kind}
	out.HeaderModifier = CopyHeaderModifier(in.HeaderModifier)
	if in.Redirect != nil {
		r := *in.Redirect
		r.Path = CopyPathRewrite(in.Redirect.Path)
		out.Redirect = &r
	}
	if in.URLRewrite != nil {
		u := *in.URLRewrite
		u.Path = CopyPathRewrite(in.URLRewrite.Path)
		out.URLRewrite = &u
	}
	if in.Mirror != nil {
		m := *in.Mirror
		out.Mirror = &m
	}
	return out
}

// CopyFilters returns a deep copy of a RouteFilter slice.
func CopyFilters(in []RouteFilter) []RouteFilter {
	if in == nil {
		return nil
	}
	out := make([]RouteFilter, len(in))
	for i, f := range in {
		out[i] = CopyFilter(f)
	}
	return out
}

// copyPathMatch returns a shallow-structural copy of a PathMatch; the
// cached regex is a compiled, read-only *regexp.Regexp safe to share
// between the original and the copy.
func copyPathMatch(in *PathMatch) *PathMatch {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}

func copyHeaderMatches(in []HeaderMatch) []HeaderMatch {
	if in == nil {
		return nil
	}
	out := make([]HeaderMatch, len(in))
	copy(out, in)
	return out
}

func copyQueryMatches(in []QueryMatch) []QueryMatch {
	if in == nil {
		return nil
	}
	out := make([]QueryMatch, len(in))
	copy(out, in)
	return out
}

func copyRouteMatches(in []RouteMatch) []RouteMatch {
	if in == nil {
		return nil
	}
	out := make([]RouteMatch, len(in))
	for i, m := range in {
		out[i] = RouteMatch{
			Path:        copyPathMatch(m.Path),
			Headers:     copyHeaderMatches(m.Headers),
			Method:      m.Method,
			QueryParams: copyQueryMatches(m.QueryParams),
		}
	}
	return out
}

func copyBackends(in []RouteBackend) []RouteBackend {
	if in == nil {
		return nil
	}
	out := make([]RouteBackend, len(in))
	for i, b := range in {
		out[i] = RouteBackend{
			ServiceRef: b.ServiceRef,
			Weight:     b.Weight,
			Port:       b.Port,
			Filters:    CopyFilters(b.Filters),
		}
	}
	return out
}

func copyTrafficPolicy(in TrafficPolicy) TrafficPolicy {
	out := TrafficPolicy{}
	if in.RequestTimeout != nil {
		v := *in.RequestTimeout
		out.RequestTimeout = &v
	}
	if in.BackendRequestTimeout != nil {
		v := *in.BackendRequestTimeout
		out.BackendRequestTimeout = &v
	}
	return out
}

func copyExtAuthzPolicy(in *ExtAuthzPolicy) *ExtAuthzPolicy {
	if in == nil {
		return nil
	}
	out := &ExtAuthzPolicy{Target: in.Target, FailureMode: in.FailureMode}
	if in.ContextExtensions != nil {
		out.ContextExtensions = make(map[string]string, len(in.ContextExtensions))
		for k, v := range in.ContextExtensions {
			out.ContextExtensions[k] = v
		}
	}
	return out
}

func copyRoute(in Route) Route {
	return Route{
		Name:          in.Name,
		ListenerRef:   in.ListenerRef,
		Section:       in.Section,
		Hostnames:     CopyStrings(in.Hostnames),
		Matches:       copyRouteMatches(in.Matches),
		Filters:       CopyFilters(in.Filters),
		Backends:      copyBackends(in.Backends),
		TrafficPolicy: copyTrafficPolicy(in.TrafficPolicy),
		ExtAuthz:      copyExtAuthzPolicy(in.ExtAuthz),
	}
}

func copyTLSConfig(in *TLSConfig) *TLSConfig {
	if in == nil {
		return nil
	}
	out := &TLSConfig{}
	if in.CertPEM != nil {
		out.CertPEM = append([]byte(nil), in.CertPEM...)
	}
	if in.KeyPEM != nil {
		out.KeyPEM = append([]byte(nil), in.KeyPEM...)
	}
	return out
}

func copyListener(in Listener) Listener {
	return Listener{
		Name:     in.Name,
		BindRef:  in.BindRef,
		Group:    in.Group,
		Hostname: in.Hostname,
		Protocol: in.Protocol,
		TLS:      copyTLSConfig(in.TLS),
	}
}

// CopySnapshot returns a deep copy of s, so that a Snapshot handed to
// snapshot.Store.Publish is never an alias the caller can go on mutating
// out from under in-flight requests -- the Config Snapshot Store's
// immutability invariant (§4.1) holds even against a careless publisher,
// not just against the request path itself.
func CopySnapshot(s *Snapshot) *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Binds: append([]Bind(nil), s.Binds...),
	}
	if s.Listeners != nil {
		out.Listeners = make([]Listener, len(s.Listeners))
		for i, l := range s.Listeners {
			out.Listeners[i] = copyListener(l)
		}
	}
	if s.Routes != nil {
		out.Routes = make([]Route, len(s.Routes))
		for i, r := range s.Routes {
			out.Routes[i] = copyRoute(r)
		}
	}
	return out
}
