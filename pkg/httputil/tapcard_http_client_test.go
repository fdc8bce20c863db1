package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClientAppliesConfig(t *testing.T) {
	cfg := StorageClientConfig()
	c := NewClient(cfg)
	if c.Timeout != cfg.ResponseTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout, cfg.ResponseTimeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport = %T", c.Transport)
	}
	if tr.MaxIdleConnsPerHost != cfg.MaxIdleConnsPerHost || tr.MaxConnsPerHost != cfg.MaxConnsPerHost {
		t.Errorf("pool limits not applied: %+v", tr)
	}
}

func TestClientTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.ResponseTimeout = 50 * time.Millisecond
	resp, err := NewClient(cfg).Get(srv.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected timeout")
	}
}
