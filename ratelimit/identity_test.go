package ratelimit

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientIdentifier_PrefersTrustedHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "cloudflare connecting ip",
			headers: map[string]string{"CF-Connecting-IP": "203.0.113.7"},
			want:    "203.0.113.7",
		},
		{
			name:    "true client ip",
			headers: map[string]string{"True-Client-IP": "203.0.113.8"},
			want:    "203.0.113.8",
		},
		{
			name:    "x-real-ip",
			headers: map[string]string{"X-Real-IP": "203.0.113.9"},
			want:    "203.0.113.9",
		},
		{
			name: "cloudflare wins over x-real-ip",
			headers: map[string]string{
				"X-Real-IP":        "203.0.113.9",
				"CF-Connecting-IP": "203.0.113.7",
			},
			want: "203.0.113.7",
		},
		{
			name:    "whitespace is trimmed",
			headers: map[string]string{"X-Real-IP": "  203.0.113.9  "},
			want:    "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIdentifier(r); got != tt.want {
				t.Errorf("ClientIdentifier() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIdentifier_IgnoresXForwardedFor(t *testing.T) {
	// X-Forwarded-For is client-suppliable: forged hops come first. It must
	// not influence the key, or one client mints a fresh identity per
	// request.
	plain := httptest.NewRequest("GET", "/", nil)
	plain.RemoteAddr = "198.51.100.4:51234"
	plain.Header.Set("User-Agent", "test-agent/1.0")
	want := ClientIdentifier(plain)

	forged := httptest.NewRequest("GET", "/", nil)
	forged.RemoteAddr = "198.51.100.4:51234"
	forged.Header.Set("User-Agent", "test-agent/1.0")
	forged.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := ClientIdentifier(forged); got != want {
		t.Errorf("forged X-Forwarded-For changed the key: %q vs %q", got, want)
	}
}

func TestClientIdentifier_ForgedHopsCannotMintIdentities(t *testing.T) {
	l := newTestLimiter(DefaultOptions())
	cfg := Config{Limit: 1, Window: time.Minute}

	denied := 0
	for i := 0; i < 5; i++ {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "198.51.100.4:51234"
		r.Header.Set("User-Agent", "test-agent/1.0")
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))

		if res := l.Check(ClientIdentifier(r), cfg); !res.Allowed {
			denied++
		}
	}

	if denied != 4 {
		t.Errorf("expected 4 of 5 forged requests denied, got %d", denied)
	}
}

func TestClientIdentifier_FallsBackToFingerprint(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "198.51.100.4:51234"
	r.Header.Set("User-Agent", "test-agent/1.0")

	got := ClientIdentifier(r)
	if !strings.HasPrefix(got, "fp:") {
		t.Fatalf("expected a fingerprint identifier, got %q", got)
	}

	// Same request characteristics produce the same key.
	r2 := httptest.NewRequest("GET", "/", nil)
	r2.RemoteAddr = "198.51.100.4:9999" // port must not matter
	r2.Header.Set("User-Agent", "test-agent/1.0")
	if got2 := ClientIdentifier(r2); got2 != got {
		t.Errorf("expected a stable fingerprint, got %q and %q", got, got2)
	}
}

func TestClientIdentifier_FingerprintVariesByCharacteristics(t *testing.T) {
	base := httptest.NewRequest("GET", "/", nil)
	base.RemoteAddr = "198.51.100.4:51234"
	base.Header.Set("User-Agent", "test-agent/1.0")
	baseID := ClientIdentifier(base)

	otherUA := httptest.NewRequest("GET", "/", nil)
	otherUA.RemoteAddr = "198.51.100.4:51234"
	otherUA.Header.Set("User-Agent", "different-agent/2.0")
	if ClientIdentifier(otherUA) == baseID {
		t.Error("expected a different fingerprint for a different user agent")
	}

	otherIP := httptest.NewRequest("GET", "/", nil)
	otherIP.RemoteAddr = "198.51.100.5:51234"
	otherIP.Header.Set("User-Agent", "test-agent/1.0")
	if ClientIdentifier(otherIP) == baseID {
		t.Error("expected a different fingerprint for a different remote IP")
	}
}
