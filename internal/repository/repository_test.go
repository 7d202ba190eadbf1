package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiles(t *testing.T) {
	c := context.Background()
	pool, container, queries := setup(t)(c)
	defer teardown(t)(pool, container)

	userID := uuid.New()

	_, err := queries.FindProfileByUserId(c, userID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	profile, err := queries.UpsertProfilePhoneNumber(c, UpsertProfilePhoneNumberParams{
		UserID:      userID,
		PhoneNumber: TextFromString("+6281234567890"),
	})
	require.NoError(t, err)
	assert.Equal(t, "+6281234567890", profile.Phone())

	profile, err = queries.UpsertProfilePhoneNumber(c, UpsertProfilePhoneNumberParams{
		UserID:      userID,
		PhoneNumber: TextFromString("+14155550100"),
	})
	require.NoError(t, err)

	found, err := queries.FindProfileByUserId(c, userID)
	require.NoError(t, err)
	assert.Equal(t, profile.UserID, found.UserID)
	assert.Equal(t, "+14155550100", found.Phone())
}

func TestCartItems(t *testing.T) {
	c := context.Background()
	pool, container, queries := setup(t)(c)
	defer teardown(t)(pool, container)

	userID := uuid.New()
	otherUserID := uuid.New()

	params := []InsertCartItemsParams{
		{UserID: userID, VariantID: "v-1", ProductID: "p-1", Quantity: 2, ProductData: []byte(`{"title":"Ring"}`)},
		{UserID: userID, VariantID: "v-2", ProductID: "p-2", Quantity: 1, ProductData: []byte(`{"title":"Necklace"}`)},
		{UserID: otherUserID, VariantID: "v-1", ProductID: "p-1", Quantity: 5, ProductData: []byte(`{}`)},
	}
	inserted, err := queries.InsertCartItems(c, params)
	require.NoError(t, err)
	assert.EqualValues(t, 3, inserted)

	items, err := queries.FindCartItemsByUserId(c, userID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	quantities := map[string]int32{}
	for _, item := range items {
		quantities[item.VariantID] = item.Quantity
	}
	assert.Equal(t, map[string]int32{"v-1": 2, "v-2": 1}, quantities)

	_, err = queries.InsertCartItems(c, params[:1])
	assert.Error(t, err, "one row per variant per user")

	deleted, err := queries.DeleteCartItemsByUserId(c, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	items, err = queries.FindCartItemsByUserId(c, userID)
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = queries.FindCartItemsByUserId(c, otherUserID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestOrders(t *testing.T) {
	c := context.Background()
	pool, container, queries := setup(t)(c)
	defer teardown(t)(pool, container)

	userID := uuid.New()
	orderID := uuid.New()

	order, err := queries.InsertOrder(c, InsertOrderParams{
		ID:           orderID,
		UserID:       userID,
		CheckoutUrl:  "https://shop.example/checkout/1",
		TotalAmount:  NumericFromDecimal(decimal.RequireFromString("149.90")),
		CurrencyCode: "USD",
		Status:       OrderStatusPending,
		OrderData:    []byte(`{"items":[]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, orderID, order.ID)
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.True(t, decimal.RequireFromString("149.90").Equal(order.Total()))

	_, err = queries.InsertOrder(c, InsertOrderParams{
		ID:           uuid.New(),
		UserID:       userID,
		CheckoutUrl:  "https://shop.example/checkout/2",
		TotalAmount:  NumericFromDecimal(decimal.Zero),
		CurrencyCode: "USD",
		Status:       OrderStatusPending,
		OrderData:    []byte(`{}`),
	})
	assert.Error(t, err, "total amount must be positive")

	orders, err := queries.FindOrdersByUserId(c, userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "https://shop.example/checkout/1", orders[0].CheckoutUrl)
}
