package session

import (
	"github.com/golang-jwt/jwt/v4"
)

// Claims is the key/value payload decoded from an access token. The token is
// parsed without signature verification: the remote backend is the enforcement
// point, and claims are only used for advisory routing and display.
type Claims map[string]any

// decodeClaims extracts the payload of a three-part token. It returns false
// for anything that is not a well-formed JWT; it never panics or errors.
func decodeClaims(token string) (Claims, bool) {
	if token == "" {
		return nil, false
	}
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, false
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	return Claims(mapClaims), true
}

// stringClaim returns a claim value when it is a string.
func (c Claims) stringClaim(key string) (string, bool) {
	value, ok := c[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// boolClaim returns a claim value when it is a boolean.
func (c Claims) boolClaim(key string) (bool, bool) {
	value, ok := c[key]
	if !ok {
		return false, false
	}
	b, ok := value.(bool)
	return b, ok
}

// listClaim returns a claim value when it is a list, with each element
// rendered as a string where possible.
func (c Claims) listClaim(key string) ([]string, bool) {
	value, ok := c[key]
	if !ok {
		return nil, false
	}
	items, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
