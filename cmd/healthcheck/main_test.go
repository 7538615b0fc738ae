package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "127.0.0.1:8080"},
		{"garbage", "127.0.0.1:8080"},
		{":9090", "127.0.0.1:9090"},
		{"0.0.0.0:8081", "127.0.0.1:8081"},
		{"[::]:8082", "127.0.0.1:8082"},
		{"10.0.0.5:8080", "10.0.0.5:8080"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeAddr(tt.raw), "raw=%q", tt.raw)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   int
	}{
		{name: "healthy", status: http.StatusOK, body: `{"status":"ok","time":"2026-10-19T08:00:00Z"}`, want: 0},
		{name: "wrong status field", status: http.StatusOK, body: `{"status":"degraded"}`, want: 1},
		{name: "not json", status: http.StatusOK, body: `ok`, want: 1},
		{name: "server error", status: http.StatusInternalServerError, body: `{"status":"ok"}`, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/health", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			assert.Equal(t, tt.want, check(strings.TrimPrefix(srv.URL, "http://")))
		})
	}
}

func TestCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	assert.Equal(t, 1, check(addr))
}
