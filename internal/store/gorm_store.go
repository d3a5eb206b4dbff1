package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"computer-club-backend/internal/model"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) PriceTable(ctx context.Context, zone string) (*model.PriceTable, error) {
	var tiers []model.PriceTier
	if err := s.db.WithContext(ctx).Where("zone = ?", zone).Order("hours").Find(&tiers).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch price tiers for zone %q: %w", zone, err)
	}
	if len(tiers) == 0 {
		return nil, ErrNotFound
	}
	tables := groupTiers(tiers)
	return &tables[0], nil
}

func (s *gormStore) PriceTables(ctx context.Context) ([]model.PriceTable, error) {
	var tiers []model.PriceTier
	if err := s.db.WithContext(ctx).Order("zone").Order("hours").Find(&tiers).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch price tiers: %w", err)
	}
	return groupTiers(tiers), nil
}

// groupTiers folds rows ordered by zone into one table per zone.
func groupTiers(tiers []model.PriceTier) []model.PriceTable {
	var tables []model.PriceTable
	for _, t := range tiers {
		if len(tables) == 0 || tables[len(tables)-1].Zone != t.Zone {
			tables = append(tables, model.PriceTable{Zone: t.Zone, Prices: make(map[int]float64)})
		}
		tables[len(tables)-1].Prices[t.Hours] = t.Price
	}
	return tables
}

func (s *gormStore) UpsertPriceTable(ctx context.Context, table model.PriceTable) error {
	rows := make([]model.PriceTier, 0, len(table.Prices))
	for hours, price := range table.Prices {
		rows = append(rows, model.PriceTier{Zone: table.Zone, Hours: hours, Price: price})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("zone = ?", table.Zone).Delete(&model.PriceTier{}).Error; err != nil {
			return fmt.Errorf("failed to clear price tiers for zone %q: %w", table.Zone, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to write price tiers for zone %q: %w", table.Zone, err)
		}
		return nil
	})
}

func (s *gormStore) ActiveDiscounts(ctx context.Context, zone string, at time.Time) ([]model.Discount, error) {
	at = at.UTC()
	var discounts []model.Discount
	err := s.db.WithContext(ctx).
		Where("(zone = ? OR zone = ?) AND start_date <= ? AND end_date >= ?", zone, model.AllZones, at, at).
		Order("start_date").Order("id").
		Find(&discounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discounts for zone %q: %w", zone, err)
	}
	return discounts, nil
}

func (s *gormStore) ListDiscounts(ctx context.Context) ([]model.Discount, error) {
	var discounts []model.Discount
	if err := s.db.WithContext(ctx).Order("start_date").Order("id").Find(&discounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}
	return discounts, nil
}

func (s *gormStore) GetDiscount(ctx context.Context, id string) (*model.Discount, error) {
	var d model.Discount
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch discount %s: %w", id, err)
	}
	return &d, nil
}

func (s *gormStore) DiscountsEndedBefore(ctx context.Context, t time.Time) ([]model.Discount, error) {
	var discounts []model.Discount
	if err := s.db.WithContext(ctx).Where("end_date < ?", t.UTC()).Find(&discounts).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch ended discounts: %w", err)
	}
	return discounts, nil
}

func (s *gormStore) CreateDiscount(ctx context.Context, d *model.Discount) error {
	d.StartDate = d.StartDate.UTC()
	d.EndDate = d.EndDate.UTC()
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create discount: %w", err)
	}
	return nil
}

func (s *gormStore) DeleteDiscount(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Discount{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete discount %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) ListDevices(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	err := s.db.WithContext(ctx).
		Preload("Bookings", func(db *gorm.DB) *gorm.DB { return db.Order("start_time") }).
		Order("id").
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (s *gormStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, err)
	}
	return &u, nil
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return &sub, nil
}

func (s *gormStore) SubscriptionsForZone(ctx context.Context, zone string) ([]model.PushSubscription, error) {
	q := s.db.WithContext(ctx)
	if zone != model.AllZones {
		q = q.Where("zone = ? OR zone = ?", zone, model.AllZones)
	}
	var subs []model.PushSubscription
	if err := q.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for zone %q: %w", zone, err)
	}
	return subs, nil
}

func (s *gormStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription) error {
	if sub.Zone == "" {
		sub.Zone = model.AllZones
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "zone"}),
	}).Create(&sub).Error
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	res := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint})
	if res.Error != nil {
		return fmt.Errorf("failed to delete subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
