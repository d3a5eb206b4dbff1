package store

import (
	"context"
	"errors"
	"time"

	"computer-club-backend/internal/model"
)

// ErrNotFound is returned when the requested zone table, discount, user or
// subscription does not exist.
var ErrNotFound = errors.New("record not found")

// PriceReader reads base price tables.
type PriceReader interface {
	PriceTable(ctx context.Context, zone string) (*model.PriceTable, error)
	PriceTables(ctx context.Context) ([]model.PriceTable, error)
}

// DiscountReader reads discount records.
type DiscountReader interface {
	// ActiveDiscounts returns discounts for zone or "all" whose date range contains at,
	// ordered by start date then id. Clock windows are not applied here.
	ActiveDiscounts(ctx context.Context, zone string, at time.Time) ([]model.Discount, error)
	ListDiscounts(ctx context.Context) ([]model.Discount, error)
	GetDiscount(ctx context.Context, id string) (*model.Discount, error)
	// DiscountsEndedBefore returns discounts whose end date is strictly before t.
	DiscountsEndedBefore(ctx context.Context, t time.Time) ([]model.Discount, error)
}

// DeviceReader reads devices together with their booking history.
type DeviceReader interface {
	ListDevices(ctx context.Context) ([]model.Device, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// SubscriptionStore manages push subscriptions.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	SubscriptionsForZone(ctx context.Context, zone string) ([]model.PushSubscription, error)
	UpsertSubscription(ctx context.Context, sub model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Store defines the interface for all persistence operations.
type Store interface {
	PriceReader
	DiscountReader
	DeviceReader
	SubscriptionStore

	UpsertPriceTable(ctx context.Context, table model.PriceTable) error
	CreateDiscount(ctx context.Context, d *model.Discount) error
	DeleteDiscount(ctx context.Context, id string) error
}
