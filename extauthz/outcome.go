package extauthz

import (
	"net/http"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"

	"github.com/agentgateway/agentgateway/filters/headermodifier"
	"github.com/agentgateway/agentgateway/gatewayerr"
	"github.com/agentgateway/agentgateway/model"
)

// Outcome is the CheckResponse of §6 translated into the core's own
// vocabulary, so the orchestrator and filter pipeline never import the
// envoy auth v3 types directly.
type Outcome struct {
	Allowed bool

	// RequestHeaderModifier captures the OK response's headers (split into
	// Add/Set by the append flag, defaulting to false => set) and
	// headers_to_remove, applied to the outbound request immediately.
	RequestHeaderModifier *model.HeaderModifier

	// ResponseHeadersToAdd is staged for the response phase.
	ResponseHeadersToAdd []model.HeaderKV

	QueryParametersToSet    []model.HeaderKV
	QueryParametersToRemove []string

	// Denied is populated when Allowed is false.
	Denied *gatewayerr.Error
}

// Interpret maps a CheckResponse to an Outcome. Status code semantics
// follow standard RPC codes: 0 allows, non-zero denies (§6).
func Interpret(resp *authv3.CheckResponse) Outcome {
	var code int32
	if s := resp.GetStatus(); s != nil {
		code = s.GetCode()
	}
	if code == 0 {
		return interpretOK(resp.GetOkResponse())
	}
	return interpretDenied(resp.GetDeniedResponse())
}

func interpretOK(ok *authv3.OkHttpResponse) Outcome {
	out := Outcome{Allowed: true}
	if ok == nil {
		return out
	}

	mod := &model.HeaderModifier{}
	for _, h := range ok.GetHeaders() {
		kv := model.HeaderKV{Name: h.GetHeader().GetKey(), Value: h.GetHeader().GetValue()}
		if h.GetAppend().GetValue() {
			mod.Add = append(mod.Add, kv)
		} else {
			mod.Set = append(mod.Set, kv)
		}
	}
	mod.Remove = append(mod.Remove, ok.GetHeadersToRemove()...)
	out.RequestHeaderModifier = mod

	for _, h := range ok.GetResponseHeadersToAdd() {
		out.ResponseHeadersToAdd = append(out.ResponseHeadersToAdd, model.HeaderKV{
			Name: h.GetHeader().GetKey(), Value: h.GetHeader().GetValue(),
		})
	}
	for _, q := range ok.GetQueryParametersToSet() {
		out.QueryParametersToSet = append(out.QueryParametersToSet, model.HeaderKV{
			Name: q.GetKey(), Value: q.GetValue(),
		})
	}
	out.QueryParametersToRemove = ok.GetQueryParametersToRemove()
	return out
}

func interpretDenied(denied *authv3.DeniedHttpResponse) Outcome {
	status := http.StatusForbidden
	var body []byte
	headers := http.Header{}
	if denied != nil {
		if s := denied.GetStatus(); s != nil && s.GetCode() != 0 {
			status = int(s.GetCode())
		}
		body = []byte(denied.GetBody())
		for _, h := range denied.GetHeaders() {
			headers.Add(h.GetHeader().GetKey(), h.GetHeader().GetValue())
		}
	}
	return Outcome{Allowed: false, Denied: gatewayerr.Denied(status, headers, body)}
}

// Unavailable builds the Outcome for an ExtAuthz transport failure,
// honoring the route's fail_closed/fail_open policy (§4.6/§7).
func Unavailable(failOpen bool) Outcome {
	if failOpen {
		return Outcome{Allowed: true}
	}
	return Outcome{Allowed: false, Denied: gatewayerr.New(gatewayerr.AuthUnavailable)}
}

// ApplyToRequest applies the OK outcome's header mutations to an outbound
// request's headers, using headermodifier's shared Apply. It does not touch
// the query string; QueryParametersToSet/Remove are applied separately by
// the caller.
func (o Outcome) ApplyToRequest(headers http.Header) {
	if o.RequestHeaderModifier == nil {
		return
	}
	headermodifier.Apply(headers, o.RequestHeaderModifier)
}
