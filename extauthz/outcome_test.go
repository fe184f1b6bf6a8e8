package extauthz

import (
	"net/http"
	"testing"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestInterpretOKRemovesHeader(t *testing.T) {
	resp := &authv3.CheckResponse{
		Status: &rpcstatus.Status{Code: 0},
		HttpResponse: &authv3.CheckResponse_OkResponse{
			OkResponse: &authv3.OkHttpResponse{
				HeadersToRemove: []string{"Authorization"},
			},
		},
	}
	out := Interpret(resp)
	require.True(t, out.Allowed)
	require.NotNil(t, out.RequestHeaderModifier)
	assert.Contains(t, out.RequestHeaderModifier.Remove, "Authorization")

	h := http.Header{}
	h.Set("Authorization", "Bearer x")
	out.ApplyToRequest(h)
	assert.Empty(t, h.Get("Authorization"))
}

func TestInterpretDeniedDefaultsTo403(t *testing.T) {
	resp := &authv3.CheckResponse{
		Status: &rpcstatus.Status{Code: 7},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Body: "nope",
			},
		},
	}
	out := Interpret(resp)
	require.False(t, out.Allowed)
	assert.Equal(t, http.StatusForbidden, out.Denied.Status)
	assert.Equal(t, []byte("nope"), out.Denied.Body)
}

func TestInterpretDeniedHonorsExplicitStatus(t *testing.T) {
	resp := &authv3.CheckResponse{
		Status: &rpcstatus.Status{Code: 16},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Status: &typev3.HttpStatus{Code: typev3.StatusCode_Unauthorized},
			},
		},
	}
	out := Interpret(resp)
	assert.Equal(t, 401, out.Denied.Status)
}

func TestUnavailableFailClosedByDefault(t *testing.T) {
	out := Unavailable(false)
	require.False(t, out.Allowed)
	assert.NotNil(t, out.Denied)
}

func TestUnavailableFailOpen(t *testing.T) {
	out := Unavailable(true)
	assert.True(t, out.Allowed)
}

func TestInterpretOKAppendHeaderUsesAdd(t *testing.T) {
	resp := &authv3.CheckResponse{
		Status: &rpcstatus.Status{Code: 0},
		HttpResponse: &authv3.CheckResponse_OkResponse{
			OkResponse: &authv3.OkHttpResponse{
				Headers: []*corev3.HeaderValueOption{
					{
						Header: &corev3.HeaderValue{Key: "X-Extra", Value: "v1"},
						Append: wrapperspb.Bool(true),
					},
				},
			},
		},
	}
	out := Interpret(resp)
	require.Len(t, out.RequestHeaderModifier.Add, 1)
	assert.Equal(t, "X-Extra", out.RequestHeaderModifier.Add[0].Name)
}
