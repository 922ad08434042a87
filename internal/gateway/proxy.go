package gateway

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskgate/taskgate/internal/platform/httpx"
)

// Forwarder relays a request to an upstream service. Method, path, query
// string and body are preserved byte-for-byte; the upstream response is
// copied back verbatim. Forwarding is single-attempt: failures surface as
// 503, never a silent retry.
type Forwarder struct {
	client *http.Client
	logger *slog.Logger
}

// NewForwarder constructs a Forwarder with a fixed upstream timeout.
func NewForwarder(timeout time.Duration, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Forward proxies the request to targetBase+path. Callers have already
// sanitised and, for protected routes, enriched the header set.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, targetBase, path string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unreadable request body")
		return
	}

	target := targetBase + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, bytes.NewReader(body))
	if err != nil {
		f.logger.Error("build forward request", slog.Any("error", err), slog.String("target", target))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// Copy everything except Host; the outbound Host comes from the target
	// URL. Identity and provenance headers were handled by the router.
	for key, values := range r.Header {
		if http.CanonicalHeaderKey(key) == "Host" {
			continue
		}
		outReq.Header[http.CanonicalHeaderKey(key)] = values
	}

	res, err := f.client.Do(outReq)
	if err != nil {
		f.logger.Error("forward request", slog.Any("error", err), slog.String("target", target))
		httpx.Problem(w, http.StatusServiceUnavailable, "Upstream Unavailable", "service unavailable")
		return
	}
	defer res.Body.Close()

	for key, values := range res.Header {
		w.Header()[key] = values
	}
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		f.logger.Warn("copy upstream response", slog.Any("error", err), slog.String("target", target))
	}
}
