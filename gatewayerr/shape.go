package gatewayerr

import "net/http"

// Shaped is the synthetic response the Error Shaper produces for an
// *Error: it never touches a live upstream connection.
type Shaped struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Shape maps an internal *Error to the outbound status/headers/body per the
// §7 taxonomy. It is the single place this translation happens; every
// other component returns an *Error and never writes a synthetic response
// body itself.
func Shape(err *Error) Shaped {
	switch err.Kind {
	case NoListener, NoRoute:
		return Shaped{Status: http.StatusNotFound}
	case NoBackend:
		return Shaped{Status: http.StatusServiceUnavailable}
	case AuthDenied:
		status := err.Status
		if status == 0 {
			status = http.StatusForbidden
		}
		return Shaped{Status: status, Headers: err.Headers, Body: err.Body}
	case AuthUnavailable:
		return Shaped{Status: http.StatusForbidden}
	case UpstreamConnFailed, UpstreamProtocolError:
		return Shaped{Status: http.StatusBadGateway}
	case RequestTimeout, BackendTimeout:
		return Shaped{Status: http.StatusGatewayTimeout}
	case PoolExhausted:
		return Shaped{Status: http.StatusServiceUnavailable, Headers: http.Header{"Retry-After": []string{"0"}}}
	case InternalError:
		return Shaped{Status: http.StatusInternalServerError}
	default:
		return Shaped{Status: http.StatusInternalServerError}
	}
}
