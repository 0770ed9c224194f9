//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestProbes(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			resp := doGet(t, path)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("%s: got %d, want 200", path, resp.StatusCode)
			}
			body := decodeJSON[healthResponse](t, resp)
			if body.Status != "ok" || len(body.Checks) != 0 {
				t.Errorf("%s: unexpected body %+v", path, body)
			}
			if resp.Header.Get(sessionHeader) != "" {
				t.Errorf("%s: probes must not open shopper sessions", path)
			}
		})
	}
}
