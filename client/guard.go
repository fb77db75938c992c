package client

import (
	"net/url"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
)

// GuardState is the route guard's state machine.
type GuardState int

const (
	// StateChecking means the session is not hydrated yet; render nothing.
	StateChecking GuardState = iota
	// StateAuthorized admits the requested page.
	StateAuthorized
	// StateRedirecting resolves the request by navigation, never by an
	// in-place error.
	StateRedirecting
)

// Decision is the guard's verdict for one page request. Redirects are
// returned as values; the UI layer owns the actual navigation.
type Decision struct {
	State      GuardState
	RedirectTo string
}

// Guard gates role-specific pages on session state.
type Guard struct {
	store      *Store
	loginRoute string
	landing    map[kogu.Role]string
}

// NewGuard builds a guard with the default routes: /login for anonymous
// visitors and /manager, /accountant, /resident as the role landing pages.
func NewGuard(store *Store) *Guard {
	return &Guard{
		store:      store,
		loginRoute: "/login",
		landing: map[kogu.Role]string{
			kogu.RoleManager:    "/manager",
			kogu.RoleAccountant: "/accountant",
			kogu.RoleResident:   "/resident",
		},
	}
}

// Check decides access to a page requiring the given role. requestedPath is
// preserved as the return target when redirecting to login.
//
// No decision is made before the store is hydrated.
func (g *Guard) Check(required kogu.Role, requestedPath string) Decision {
	session := g.store.Session()
	if !session.Hydrated {
		return Decision{State: StateChecking}
	}

	if !session.IsAuthenticated {
		target := g.loginRoute
		if requestedPath != "" {
			target += "?next=" + url.QueryEscape(requestedPath)
		}
		return Decision{State: StateRedirecting, RedirectTo: target}
	}

	role := session.Profile.User.Role
	if role != required {
		landing, ok := g.landing[role]
		if !ok {
			landing = g.loginRoute
		}
		return Decision{State: StateRedirecting, RedirectTo: landing}
	}

	return Decision{State: StateAuthorized}
}
