package httputil

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		want       string
	}{
		{"remote addr only", "203.0.113.7:51000", "", "", "203.0.113.7"},
		{"forwarded wins", "10.0.0.1:443", "198.51.100.9", "", "198.51.100.9"},
		{"leftmost forwarded entry", "10.0.0.1:443", "198.51.100.9, 10.0.0.2", "", "198.51.100.9"},
		{"forwarded with spaces", "10.0.0.1:443", "  198.51.100.9 , 10.0.0.2", "", "198.51.100.9"},
		{"real ip fallback", "10.0.0.1:443", "", "198.51.100.4", "198.51.100.4"},
		{"remote addr without port", "203.0.113.7", "", "", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"127.0.0.53", true},
		{"::1", true},
		{"203.0.113.7", false},
		{"10.0.0.1", false},
		{"not-an-ip", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsLoopback(tt.ip); got != tt.want {
			t.Errorf("IsLoopback(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}
