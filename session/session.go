package session

// Persisted key names in the client's durable key-value store.
// Absence of either key means the client is unauthenticated.
const (
	AccessTokenKey  = "auth_token"
	RefreshTokenKey = "refresh_token"
)

// Pair holds the access/refresh token pair for the current session.
// The two tokens are always written and cleared together; callers must never
// persist one half of the pair on its own.
type Pair struct {
	AccessToken  string
	RefreshToken string
}
