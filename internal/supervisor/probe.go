package supervisor

import (
	"context"
	"net/http"
	"time"
)

// Probe polls an HTTP endpoint until it answers 2xx. It is a startup gate
// only: a false result is reported to the caller, who logs and moves on.
type Probe struct {
	Client *http.Client
}

const probeRequestTimeout = 5 * time.Second

// AwaitHealthy GETs url every interval until a 2xx response or until
// timeout elapses. Connection refused, request timeouts and non-2xx codes
// all mean "not yet healthy" and never abort the loop early.
func (p Probe) AwaitHealthy(ctx context.Context, url string, timeout, interval time.Duration) bool {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: probeRequestTimeout}
	}
	deadline := time.Now().Add(timeout)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err == nil {
			code := resp.StatusCode
			_ = resp.Body.Close()
			if code >= 200 && code < 300 {
				return true
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
		if !time.Now().Before(deadline) {
			return false
		}
	}
}
