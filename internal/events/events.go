package events

import (
	"context"
	"time"
)

// Event kinds.
const (
	DiscountCreated   = "discount.created"
	DiscountDeleted   = "discount.deleted"
	DiscountsExpired  = "discount.expired"
	PriceTableUpdated = "price_table.updated"
)

// Event announces a change that affects computed prices.
type Event struct {
	Kind       string    `json:"kind"`
	DiscountID string    `json:"discountId,omitempty"`
	Zone       string    `json:"zone,omitempty"`
	Origin     string    `json:"origin"`
	At         time.Time `json:"at"`
}

// Bus fans price-affecting changes out to every replica.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Listen delivers events published by other replicas until ctx is done.
	Listen(ctx context.Context, fn func(Event)) error
}

// NopBus is used when the service runs as a single replica.
type NopBus struct{}

func (NopBus) Publish(context.Context, Event) error { return nil }

func (NopBus) Listen(ctx context.Context, _ func(Event)) error {
	<-ctx.Done()
	return ctx.Err()
}
