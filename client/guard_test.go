package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
)

func TestGuardChecksBeforeHydration(t *testing.T) {
	store := NewStore(nil)
	guard := NewGuard(store)

	decision := guard.Check(kogu.RoleResident, "/resident/invoices")
	assert.Equal(t, StateChecking, decision.State)
	assert.Empty(t, decision.RedirectTo)
}

func TestGuardRedirectsAnonymousToLogin(t *testing.T) {
	store := NewStore(nil)
	store.MarkHydrated()
	guard := NewGuard(store)

	decision := guard.Check(kogu.RoleResident, "/resident/invoices?page=2")
	assert.Equal(t, StateRedirecting, decision.State)
	assert.Equal(t, "/login?next=%2Fresident%2Finvoices%3Fpage%3D2", decision.RedirectTo)
}

func TestGuardRedirectsAnonymousWithoutPath(t *testing.T) {
	store := NewStore(nil)
	store.MarkHydrated()
	guard := NewGuard(store)

	decision := guard.Check(kogu.RoleManager, "")
	assert.Equal(t, StateRedirecting, decision.State)
	assert.Equal(t, "/login", decision.RedirectTo)
}

func TestGuardAdmitsMatchingRole(t *testing.T) {
	store := NewStore(nil)
	store.SetSession(residentProfile(), "token-1")
	store.MarkHydrated()
	guard := NewGuard(store)

	decision := guard.Check(kogu.RoleResident, "/resident")
	assert.Equal(t, StateAuthorized, decision.State)
}

func TestGuardRedirectsWrongRoleToOwnLanding(t *testing.T) {
	profile := residentProfile()
	profile.Role = kogu.RoleAccountant

	store := NewStore(nil)
	store.SetSession(profile, "token-1")
	store.MarkHydrated()
	guard := NewGuard(store)

	// An accountant visiting a manager page lands on the accountant
	// dashboard, not on an error page.
	decision := guard.Check(kogu.RoleManager, "/manager/residents")
	assert.Equal(t, StateRedirecting, decision.State)
	assert.Equal(t, "/accountant", decision.RedirectTo)
}

func TestGuardTreatsUnverifiedProfileAsAnonymous(t *testing.T) {
	store := NewStore(nil)
	store.SetUnverifiedUser(residentProfile())
	store.SetAccessToken("token-1")
	store.MarkHydrated()
	guard := NewGuard(store)

	decision := guard.Check(kogu.RoleResident, "/resident")
	assert.Equal(t, StateRedirecting, decision.State)
	assert.Equal(t, "/login?next=%2Fresident", decision.RedirectTo)
}
