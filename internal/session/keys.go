package session

// Canonical state keys written by this layer. Earlier clients scattered
// several naming conventions across the codebase; reads fall back through the
// legacy aliases so an upgraded client picks up an existing signed-in state.
const (
	keyAccessToken  = "sipanit.access_token"
	keyRefreshToken = "sipanit.refresh_token"
	keyUserID       = "sipanit.user_id"
	keyUserEmail    = "sipanit.user_email"
	keyUserRole     = "sipanit.user_role"
)

var (
	legacyAccessTokenKeys  = []string{"access", "token", "authToken"}
	legacyRefreshTokenKeys = []string{"refresh", "refreshToken"}
	legacyUserIDKeys       = []string{"user_id", "userId", "uid"}
	legacyUserEmailKeys    = []string{"user_email", "email"}
	legacyUserRoleKeys     = []string{"user_role", "role"}
)

// SensitiveKeys lists the state keys whose values should be sealed at rest.
func SensitiveKeys() []string {
	keys := []string{keyAccessToken, keyRefreshToken}
	keys = append(keys, legacyAccessTokenKeys...)
	keys = append(keys, legacyRefreshTokenKeys...)
	return keys
}
