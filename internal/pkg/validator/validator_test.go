package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"127.0.0.1", "127.0.0.1"},
		{" 10.0.0.2 ", "10.0.0.2"},
		{"fe80::1%eth0", "fe80::1"},
		{"::ffff:192.168.1.1", "192.168.1.1"},
		{"", ""},
		{"not-an-ip", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClientIP(tt.in), tt.in)
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Ada@Example.com", "ada@example.com", true},
		{"  bob@reefs.dev ", "bob@reefs.dev", true},
		{"Ada <ada@example.com>", "", false},
		{"no-at-sign", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Email(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
