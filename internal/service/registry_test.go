package service

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(products ...domain.Product) (*Registry, *MockSessionStore, *MockCartRemote) {
	sessions := NewMockSessionStore()
	remote := NewMockCartRemote(products...)
	reg := NewRegistry(sessions, remote, NewMockLocalCart(), CheckoutDeps{Orders: NewMockOrderRemote()}, nil)
	return reg, sessions, remote
}

func TestRegistryLogin(t *testing.T) {
	reg, sessions, _ := newTestRegistry()

	ws, err := reg.Login(context.Background(), domain.Session{UserID: " user-12345 ", Role: domain.RoleCustomer, Token: "tok"})
	require.NoError(t, err)

	assert.NotEmpty(t, ws.Session.ID)
	assert.Equal(t, "user-12345", ws.Session.UserID)
	assert.False(t, ws.Session.CreatedAt.IsZero())
	assert.NotNil(t, ws.Cart)

	stored, err := sessions.Get(context.Background(), ws.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-12345", stored.UserID)
}

func TestRegistryLogin_Invalid(t *testing.T) {
	reg, _, _ := newTestRegistry()

	_, err := reg.Login(context.Background(), domain.Session{UserID: "abc", Role: domain.RoleCustomer})
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = reg.Login(context.Background(), domain.Session{UserID: "user-12345", Role: "admin"})
	assert.ErrorAs(t, err, &ve)
}

func TestRegistryResolve(t *testing.T) {
	reg, sessions, _ := newTestRegistry()

	ws, err := reg.Login(context.Background(), domain.Session{UserID: "user-12345", Role: domain.RoleCustomer})
	require.NoError(t, err)

	got, err := reg.Resolve(context.Background(), ws.Session.ID)
	require.NoError(t, err)
	assert.Same(t, ws, got)

	// a session saved by another instance is rebuilt from the store
	require.NoError(t, sessions.Save(context.Background(), &domain.Session{ID: "other", UserID: "user-67890", Role: domain.RoleRetailer}))
	rebuilt, err := reg.Resolve(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, "user-67890", rebuilt.Session.UserID)

	again, err := reg.Resolve(context.Background(), "other")
	require.NoError(t, err)
	assert.Same(t, rebuilt, again)

	_, err = reg.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistryLogout(t *testing.T) {
	reg, _, _ := newTestRegistry(product("p-1", 100, 5, "s-1"))

	ws, err := reg.Login(context.Background(), domain.Session{UserID: "user-12345", Role: domain.RoleCustomer, Address: "12 Hill Road"})
	require.NoError(t, err)
	_, err = ws.Cart.AddItem(context.Background(), product("p-1", 100, 5, "s-1"), 1)
	require.NoError(t, err)
	co, _, err := reg.StartCheckout(context.Background(), ws)
	require.NoError(t, err)

	require.NoError(t, reg.Logout(context.Background(), ws.Session.ID))

	assert.Equal(t, domain.CheckoutStatusAbandoned, co.Status())
	_, err = reg.Resolve(context.Background(), ws.Session.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistryStartCheckout_ReplacesPrevious(t *testing.T) {
	reg, _, _ := newTestRegistry(product("p-1", 100, 5, "s-1"))

	ws, err := reg.Login(context.Background(), domain.Session{UserID: "user-12345", Role: domain.RoleCustomer, Address: "12 Hill Road"})
	require.NoError(t, err)
	_, err = ws.Cart.AddItem(context.Background(), product("p-1", 100, 5, "s-1"), 2)
	require.NoError(t, err)

	first, view, err := reg.StartCheckout(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusEditing, view.Status)

	second, _, err := reg.StartCheckout(context.Background(), ws)
	require.NoError(t, err)

	assert.Equal(t, domain.CheckoutStatusAbandoned, first.Status())
	assert.Same(t, second, ws.Checkout())
	assert.NotEqual(t, first.IdempotencyKey(), second.IdempotencyKey())
}

func TestRegistryResolve_CarriesOverLocalCart(t *testing.T) {
	rice := product("p-1", 50, 10, "s-1")
	sessions := NewMockSessionStore()
	remote := NewMockCartRemote(rice)
	local := NewMockLocalCart()
	reg := NewRegistry(sessions, remote, local, CheckoutDeps{Orders: NewMockOrderRemote()}, nil)

	// left behind by a session on another instance while the marketplace was down
	require.NoError(t, local.Save(context.Background(), "user-67890", []domain.CartLine{{ProductID: "p-1", Quantity: 2, Product: rice}}))
	require.NoError(t, sessions.Save(context.Background(), &domain.Session{ID: "restarted", UserID: "user-67890", Role: domain.RoleCustomer}))

	ws, err := reg.Resolve(context.Background(), "restarted")
	require.NoError(t, err)
	assert.Equal(t, ModeDegraded, ws.Cart.Mode())

	res, err := ws.Cart.FetchCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeOnline, res.Mode)
	assert.Equal(t, 1, res.Replayed)
	assert.Equal(t, 2, remote.serverQuantity("p-1"))
}
