package extauthz

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCheckRequestLowercasesHeaders(t *testing.T) {
	attrs := RequestAttributes{
		ID:         "req-1",
		Method:     "GET",
		Path:       "/x",
		Host:       "h",
		Scheme:     "http",
		Protocol:   "HTTP/1.1",
		Headers:    http.Header{"Authorization": {"Bearer abc"}},
		SourceAddr: "10.0.0.1:1234",
		DestAddr:   "10.0.0.2:8080",
	}
	req := BuildCheckRequest(attrs, time.Unix(0, 0))
	require.NotNil(t, req.Attributes)
	require.NotNil(t, req.Attributes.Request)
	httpReq := req.Attributes.Request.GetHttp()
	assert.Equal(t, "req-1", httpReq.GetId())
	assert.Equal(t, "Bearer abc", httpReq.GetHeaders()["authorization"])
	assert.Equal(t, uint32(8080), req.Attributes.Destination.GetAddress().GetSocketAddress().GetPortValue())
}
