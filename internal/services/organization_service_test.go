package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
)

func TestOrganizationsBelongToTheirUser(t *testing.T) {
	f := newFixture(t)
	organizations := NewOrganizationService(f.db)
	jane, _, err := f.accounts.Register(f.ctx, RegisterInput{Email: "jane@example.com", Password: "secret123"})
	require.NoError(t, err)
	john, _, err := f.accounts.Register(f.ctx, RegisterInput{Email: "john@example.com", Password: "secret123"})
	require.NoError(t, err)

	acme, err := organizations.Create(f.ctx, jane.ID, OrganizationInput{Title: " Acme ", INN: "123456789012", KPP: "123456789"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", acme.Title)

	owned, err := organizations.ListForUser(f.ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, acme.ID, owned[0].ID)

	owned, err = organizations.ListForUser(f.ctx, john.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)

	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 10)
	lines := []OrderLineInput{{ItemID: x.ID, Quantity: 1}}
	shop := f.shop()

	in := pickupOrder(shop.ID)
	in.Customer.UserID = &jane.ID
	in.OrganizationID = &acme.ID
	order, err := f.orders.CreateOrder(f.ctx, in, lines)
	require.NoError(t, err)
	require.NotNil(t, order.Organization)
	assert.Equal(t, acme.ID, order.Organization.ID)
	assert.Equal(t, int64(1), f.count(&models.Organization{}, ""))

	// Someone else's organization, or none at all for anonymous buyers.
	in.Customer.UserID = &john.ID
	_, err = f.orders.CreateOrder(f.ctx, in, lines)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	in.Customer.UserID = nil
	_, err = f.orders.CreateOrder(f.ctx, in, lines)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.Equal(t, 9, f.stock(x.ID))
}
