package rewardboard

import (
	"expvar"
	"net/http"
	"time"
)

// metricsTransport records upstream HTTP response codes into the provided expvar map.
type metricsTransport struct {
	Base    http.RoundTripper
	Counter *expvar.Map
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp != nil {
		incrementResponseCount(t.Counter, resp.StatusCode)
	}
	return resp, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withResponseMetrics counts the status code of every response served by next.
func withResponseMetrics(next http.Handler, counter *expvar.Map) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		incrementResponseCount(counter, rec.status)
	})
}

// newUpstreamHTTPClient builds the client shared by the rewards and price
// fetchers: per-host rate limiting, then response accounting.
func newUpstreamHTTPClient(cfg RateLimitConfig, base http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &metricsTransport{
			Base:    newHostLimiterTransport(cfg, base),
			Counter: externalResponseCounts,
		},
	}
}
