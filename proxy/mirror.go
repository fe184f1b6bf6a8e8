package proxy

import (
	"context"
	"net/http"

	"github.com/agentgateway/agentgateway/filters"
	"github.com/agentgateway/agentgateway/logging"
)

// dispatchMirrors forks every staged MirrorRequest as a fire-and-forget
// goroutine, per §4.7: mirrors are dispatched once the request phase is
// entirely finished (route filters, backend selection, and backend
// filters all applied), have their own independent deadline, and never
// contribute to the primary state machine. Each mirror gets its own clone
// of req, built here rather than at the mirror filter's own execution
// point, so every mirror carries the request's state as of the end of the
// request phase regardless of where in the filter chain it was staged.
// mirrorLim bounds goroutine creation rate so a pathological
// percentage/route-count combination cannot fork unboundedly (§5's
// resource model names connection pools as the only other shared
// resource; this is the orchestrator's own analogous guard for mirrors).
func (o *Orchestrator) dispatchMirrors(specs []filters.MirrorRequest, req *http.Request, log logging.Logger) {
	for _, spec := range specs {
		if !o.mirrorLim.Allow() {
			log.Warnf("mirror dropped: rate limit exceeded backend_ref=%s", spec.BackendRef)
			continue
		}
		clone, err := filters.CloneRequestForMirror(req)
		if err != nil {
			// Mirror errors never propagate to the primary flow (§7).
			log.Debugf("mirror clone failed backend_ref=%s: %v", spec.BackendRef, err)
			continue
		}
		spec.Request = clone
		go o.runMirror(spec, log)
	}
}

func (o *Orchestrator) runMirror(m filters.MirrorRequest, log logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), o.defaultBackendTimeout)
	defer cancel()

	resp, err := o.upstream.Dispatch(ctx, m.BackendRef, m.Port, m.Request)
	if err != nil {
		log.Debugf("mirror failed backend_ref=%s: %v", m.BackendRef, err)
		return
	}
	closeBody(resp)
}
