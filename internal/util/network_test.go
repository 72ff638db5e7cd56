package util

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	assert.NotEqual(t, id1, id2)
	_, err := uuid.Parse(id1)
	assert.NoError(t, err)
}

func TestParseTrustedCIDRs(t *testing.T) {
	prefixes, err := ParseTrustedCIDRs([]string{"192.168.1.7/16", " ", "10.0.0.1", "::1"})
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	assert.Equal(t, "192.168.0.0/16", prefixes[0].String())
	assert.Equal(t, "10.0.0.1/32", prefixes[1].String())
	assert.Equal(t, "::1/128", prefixes[2].String())

	none, err := ParseTrustedCIDRs(nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	for _, bad := range []string{"not-a-cidr", "10.0.0.0/99"} {
		_, err = ParseTrustedCIDRs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestGetClientIP(t *testing.T) {
	trusted, err := ParseTrustedCIDRs([]string{"192.168.0.0/16"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		expected   string
	}{
		{"no proxy headers", "192.168.1.100:12345", nil, false, "192.168.1.100"},
		{"headers ignored when not trusted", "192.168.1.1:1", map[string]string{"X-Forwarded-For": "203.0.113.1"}, false, "192.168.1.1"},
		{"forwarded for from trusted proxy", "192.168.1.1:1", map[string]string{"X-Forwarded-For": "203.0.113.1, 192.168.1.2"}, true, "203.0.113.1"},
		{"spoofed leftmost entry ignored", "192.168.1.1:1", map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.5"}, true, "203.0.113.5"},
		{"all hops trusted takes first", "192.168.1.1:1", map[string]string{"X-Forwarded-For": "192.168.9.9, 192.168.1.2"}, true, "192.168.9.9"},
		{"garbage falls back to real ip", "192.168.1.1:1", map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "203.0.113.8"}, true, "203.0.113.8"},
		{"real ip from trusted proxy", "192.168.1.1:1", map[string]string{"X-Real-IP": " 203.0.113.9 "}, true, "203.0.113.9"},
		{"untrusted source keeps remote", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.1"}, true, "10.0.0.1"},
		{"ipv4 mapped peer", "[::ffff:192.168.1.1]:80", map[string]string{"X-Forwarded-For": "203.0.113.1"}, true, "203.0.113.1"},
		{"remote without port", "10.0.0.2", nil, false, "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.expected, GetClientIP(req, tt.trustProxy, trusted))
		})
	}
}
