// Package guard decides which dashboard shell a navigation may reach for the
// current session. Decisions here are advisory routing only; the remote
// backend enforces access on every call.
package guard

import (
	"strings"

	"github.com/sipanit/sipanit-client/internal/session"
)

// Dashboard identifies one of the role-specific shells.
type Dashboard string

const (
	// DashboardSignIn is the destination for unauthenticated sessions.
	DashboardSignIn Dashboard = "sign-in"
	// DashboardAdmin is the platform administration shell.
	DashboardAdmin Dashboard = "admin"
	// DashboardPlanner is the event planner shell.
	DashboardPlanner Dashboard = "planner"
	// DashboardVendor is the vendor shell.
	DashboardVendor Dashboard = "vendor"
	// DashboardGuest is the guest kiosk shell.
	DashboardGuest Dashboard = "guest"
)

// roleClaims lists the claim keys consulted for the session role, in order.
var roleClaims = []string{"role", "user_role", "userRole", "user_type"}

// Resolve returns the dashboard the current session lands on.
func Resolve(sess *session.Store) Dashboard {
	if sess == nil || !sess.Authenticated() {
		return DashboardSignIn
	}
	if sess.IsAdmin() {
		return DashboardAdmin
	}

	role := sessionRole(sess)
	switch role {
	case "planner":
		return DashboardPlanner
	case "vendor":
		return DashboardVendor
	case "guest":
		return DashboardGuest
	}
	// Authenticated with an unknown role: the planner shell is the platform's
	// default landing surface.
	return DashboardPlanner
}

// Allow reports whether the current session may navigate to the dashboard.
// Admins reach everything; other roles only their own shell.
func Allow(sess *session.Store, target Dashboard) bool {
	if target == DashboardSignIn {
		return true
	}
	if sess == nil || !sess.Authenticated() {
		return false
	}
	if sess.IsAdmin() {
		return true
	}
	return Resolve(sess) == target
}

// sessionRole extracts the role from claims, falling back to the stored role
// hint when the token does not carry one.
func sessionRole(sess *session.Store) string {
	if claims, ok := sess.Claims(); ok {
		for _, key := range roleClaims {
			if value, ok := claims[key]; ok {
				if role, ok := value.(string); ok && role != "" {
					return strings.ToLower(strings.TrimSpace(role))
				}
			}
		}
	}
	return strings.ToLower(strings.TrimSpace(sess.Hints().Role))
}
