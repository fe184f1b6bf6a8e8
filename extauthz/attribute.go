// Package extauthz implements the External Authorization Client of §4.6:
// it builds the attribute bundle, issues the check over the real Envoy
// ext_authz gRPC protocol, and interprets the allow/deny/mutate outcome.
// Grounded on the teacher's dependency on envoyproxy/go-control-plane and
// google.golang.org/grpc for its OPA/Envoy ext_authz integration -- the
// wire types here are the same envoy.service.auth.v3 messages Envoy's own
// ext_authz filter exchanges with an authorization server, rather than a
// bespoke JSON schema.
package extauthz

import (
	"net"
	"net/http"
	"strconv"
	"time"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// RequestAttributes is everything the core gathers from the in-flight
// request to build the AttributeContext, kept as plain Go values so
// callers outside this package never construct protobuf types directly.
type RequestAttributes struct {
	ID       string
	Method   string
	Headers  http.Header
	Path     string
	Host     string
	Scheme   string
	Protocol string
	Size     int64

	SourceAddr string // host:port
	DestAddr   string // host:port

	SNI string // set only when terminating TLS

	ContextExtensions map[string]string
}

func socketAddress(hostport string) *corev3.Address {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	port, _ := strconv.Atoi(portStr)
	return &corev3.Address{
		Address: &corev3.Address_SocketAddress{
			SocketAddress: &corev3.SocketAddress{
				Address: host,
				PortSpecifier: &corev3.SocketAddress_PortValue{
					PortValue: uint32(port),
				},
			},
		},
	}
}

// BuildCheckRequest constructs the CheckRequest message the ExtAuthz wire
// protocol expects (§6), with lowercased headers per §4.6.
func BuildCheckRequest(attrs RequestAttributes, now time.Time) *authv3.CheckRequest {
	headers := make(map[string]string, len(attrs.Headers))
	for name, values := range attrs.Headers {
		if len(values) == 0 {
			continue
		}
		headers[lowerHeaderName(name)] = values[0]
	}

	req := &authv3.CheckRequest{
		Attributes: &authv3.AttributeContext{
			Source: &authv3.AttributeContext_Peer{
				Address: socketAddress(attrs.SourceAddr),
			},
			Destination: &authv3.AttributeContext_Peer{
				Address: socketAddress(attrs.DestAddr),
			},
			Request: &authv3.AttributeContext_Request{
				Time: timestamppb.New(now),
				Http: &authv3.AttributeContext_HttpRequest{
					Id:       attrs.ID,
					Method:   attrs.Method,
					Headers:  headers,
					Path:     attrs.Path,
					Host:     attrs.Host,
					Scheme:   attrs.Scheme,
					Protocol: attrs.Protocol,
					Size:     attrs.Size,
				},
			},
			ContextExtensions: attrs.ContextExtensions,
		},
	}
	if attrs.SNI != "" {
		req.Attributes.TlsSession = &authv3.AttributeContext_TLSSession{Sni: attrs.SNI}
	}
	return req
}

func lowerHeaderName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
