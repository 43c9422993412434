package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSecurityLevel(t *testing.T) {
	tests := []struct {
		method, path string
		want         SecurityLevel
	}{
		{"GET", "/api/v1/invitations/verify", SecurityPublic},
		{"POST", "/api/v1/invitations", SecurityMember},
		{"GET", "/api/v1/invitations/mine", SecurityMember},
		{"POST", "/api/v1/registrations/complete", SecurityService},
		{"GET", "/api/v1/invitations", SecurityAdmin},
		{"DELETE", "/api/v1/invitations", SecurityAdmin},
		{"PUT", "/api/v1/invitations", SecurityAdmin},
		{"GET", "/api/v1/unknown", SecurityAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, GetSecurityLevel(tt.method, tt.path))
		})
	}
}
