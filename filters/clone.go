package filters

import (
	"bytes"
	"io"
	"net/http"
)

// CloneRequestForMirror duplicates req, buffering and replaying its body so
// the caller's request and the returned clone can each read an independent
// copy. req.Body is left replayable (a NopCloser over the buffered bytes)
// so a later caller -- another mirror, or the primary dispatch -- can still
// read it in full.
func CloneRequestForMirror(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Clone(req.Context()), nil
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(req.Body); err != nil {
		return nil, err
	}
	_ = req.Body.Close()

	req.Body = io.NopCloser(bytes.NewReader(buf.Bytes()))
	clone := req.Clone(req.Context())
	clone.Body = io.NopCloser(bytes.NewReader(buf.Bytes()))
	return clone, nil
}
