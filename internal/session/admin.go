package session

import "strings"

// Admin detection tries an ordered list of claim conventions. The backends
// this layer has talked to over time disagree on where the role lives, so the
// strategies are kept explicit here rather than scattered as string literals.
//
// Order: superuser/staff booleans, then role-like string claims, then
// role-list claims. First match wins.

const msRoleClaimURI = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"

var adminFlagClaims = []string{"is_superuser", "is_staff"}

var adminRoleClaims = []string{"role", "user_role", "userRole", "user_type", "account_type", msRoleClaimURI}

var adminListClaims = []string{"roles", "groups", "permissions"}

// claimsIndicateAdmin reports whether the claims identify an administrator.
// Absent or malformed claims never indicate admin.
func claimsIndicateAdmin(claims Claims) bool {
	if len(claims) == 0 {
		return false
	}

	for _, key := range adminFlagClaims {
		if flag, ok := claims.boolClaim(key); ok && flag {
			return true
		}
	}

	for _, key := range adminRoleClaims {
		if role, ok := claims.stringClaim(key); ok && strings.EqualFold(strings.TrimSpace(role), "admin") {
			return true
		}
	}

	for _, key := range adminListClaims {
		values, ok := claims.listClaim(key)
		if !ok {
			continue
		}
		for _, value := range values {
			if strings.EqualFold(strings.TrimSpace(value), "admin") {
				return true
			}
		}
	}

	return false
}
