package config

type SecurityLevel int

const (
	SecurityPublic  SecurityLevel = iota // No authentication
	SecurityMember                       // Any user access token
	SecurityService                      // Service token or admin access token
	SecurityAdmin                        // Access token carrying the admin role
)

// RouteSecurityConfig maps "METHOD path-template" to the required security level
var RouteSecurityConfig = map[string]SecurityLevel{
	// Registration flow - Public
	"GET /api/v1/invitations/verify": SecurityPublic,

	// Inviters
	"POST /api/v1/invitations":     SecurityMember,
	"GET /api/v1/invitations/mine": SecurityMember,

	// Forum backend
	"POST /api/v1/registrations/complete": SecurityService,

	// Administration
	"GET /api/v1/invitations":    SecurityAdmin,
	"DELETE /api/v1/invitations": SecurityAdmin,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(method, pathTemplate string) SecurityLevel {
	if level, exists := RouteSecurityConfig[method+" "+pathTemplate]; exists {
		return level
	}
	// Default to highest security for unknown routes
	return SecurityAdmin
}
