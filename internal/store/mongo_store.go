package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/model"
)

// Collection names shared with the booking service that owns the database.
const (
	DevicesCollection           = "devices"
	DiscountsCollection         = "discounts"
	PriceTablesCollection       = "priceTables"
	UsersCollection             = "users"
	PushSubscriptionsCollection = "pushSubscriptions"
)

// mongoStore implements the Store interface on top of a MongoDB database.
type mongoStore struct {
	devices       *mongo.Collection
	discounts     *mongo.Collection
	priceTables   *mongo.Collection
	users         *mongo.Collection
	subscriptions *mongo.Collection
	loc           *time.Location
	log           zerolog.Logger
}

// NewMongoStore creates a store reading the club collections of database. Booking
// timestamps stored without a zone are read in loc.
func NewMongoStore(database *mongo.Database, loc *time.Location) Store {
	if loc == nil {
		loc = time.UTC
	}
	return &mongoStore{
		devices:       database.Collection(DevicesCollection),
		discounts:     database.Collection(DiscountsCollection),
		priceTables:   database.Collection(PriceTablesCollection),
		users:         database.Collection(UsersCollection),
		subscriptions: database.Collection(PushSubscriptionsCollection),
		loc:           loc,
		log:           logging.Component("store"),
	}
}

// priceTableDoc is the stored shape of a price table; BSON keys are always strings.
type priceTableDoc struct {
	Zone   string             `bson:"zone"`
	Prices map[string]float64 `bson:"prices"`
}

func (d priceTableDoc) toModel() model.PriceTable {
	t := model.PriceTable{Zone: d.Zone, Prices: make(map[int]float64, len(d.Prices))}
	for k, v := range d.Prices {
		hours, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		t.Prices[hours] = v
	}
	return t
}

func (s *mongoStore) PriceTable(ctx context.Context, zone string) (*model.PriceTable, error) {
	var doc priceTableDoc
	if err := s.priceTables.FindOne(ctx, bson.M{"zone": zone}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch price table for zone %q: %w", zone, err)
	}
	t := doc.toModel()
	return &t, nil
}

func (s *mongoStore) PriceTables(ctx context.Context) ([]model.PriceTable, error) {
	cur, err := s.priceTables.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "zone", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price tables: %w", err)
	}
	var docs []priceTableDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode price tables: %w", err)
	}
	tables := make([]model.PriceTable, 0, len(docs))
	for _, d := range docs {
		tables = append(tables, d.toModel())
	}
	return tables, nil
}

func (s *mongoStore) UpsertPriceTable(ctx context.Context, table model.PriceTable) error {
	prices := make(bson.M, len(table.Prices))
	for hours, price := range table.Prices {
		prices[strconv.Itoa(hours)] = price
	}
	_, err := s.priceTables.UpdateOne(ctx,
		bson.M{"zone": table.Zone},
		bson.M{"$set": bson.M{"zone": table.Zone, "prices": prices}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price table for zone %q: %w", table.Zone, err)
	}
	return nil
}

var discountOrder = options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}, {Key: "_id", Value: 1}})

// discountDoc decodes discounts written by either service; documents created by the
// booking service carry only the ObjectID.
type discountDoc struct {
	ObjectID           primitive.ObjectID `bson:"_id,omitempty"`
	ID                 string             `bson:"id"`
	Zone               string             `bson:"zone"`
	StartDate          time.Time          `bson:"startDate"`
	EndDate            time.Time          `bson:"endDate"`
	DiscountPercentage float64            `bson:"discountPercentage"`
	SpecificPeriod     string             `bson:"specificPeriod,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt"`
}

func (d discountDoc) toModel() model.Discount {
	id := d.ID
	if id == "" && !d.ObjectID.IsZero() {
		id = d.ObjectID.Hex()
	}
	return model.Discount{
		ID:                 id,
		Zone:               d.Zone,
		StartDate:          d.StartDate,
		EndDate:            d.EndDate,
		DiscountPercentage: d.DiscountPercentage,
		SpecificPeriod:     d.SpecificPeriod,
		CreatedAt:          d.CreatedAt,
	}
}

// discountFilter matches id against both the string id and the ObjectID.
func discountFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"$or": bson.A{bson.M{"_id": oid}, bson.M{"id": id}}}
	}
	return bson.M{"id": id}
}

func (s *mongoStore) findDiscounts(ctx context.Context, filter bson.M) ([]model.Discount, error) {
	cur, err := s.discounts.Find(ctx, filter, discountOrder)
	if err != nil {
		return nil, err
	}
	var docs []discountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	discounts := make([]model.Discount, 0, len(docs))
	for _, d := range docs {
		discounts = append(discounts, d.toModel())
	}
	return discounts, nil
}

func (s *mongoStore) ActiveDiscounts(ctx context.Context, zone string, at time.Time) ([]model.Discount, error) {
	discounts, err := s.findDiscounts(ctx, bson.M{
		"zone":      bson.M{"$in": []string{zone, model.AllZones}},
		"startDate": bson.M{"$lte": at},
		"endDate":   bson.M{"$gte": at},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discounts for zone %q: %w", zone, err)
	}
	return discounts, nil
}

func (s *mongoStore) ListDiscounts(ctx context.Context) ([]model.Discount, error) {
	discounts, err := s.findDiscounts(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}
	return discounts, nil
}

func (s *mongoStore) GetDiscount(ctx context.Context, id string) (*model.Discount, error) {
	var doc discountDoc
	if err := s.discounts.FindOne(ctx, discountFilter(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch discount %s: %w", id, err)
	}
	d := doc.toModel()
	return &d, nil
}

func (s *mongoStore) DiscountsEndedBefore(ctx context.Context, t time.Time) ([]model.Discount, error) {
	discounts, err := s.findDiscounts(ctx, bson.M{"endDate": bson.M{"$lt": t}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ended discounts: %w", err)
	}
	return discounts, nil
}

func (s *mongoStore) CreateDiscount(ctx context.Context, d *model.Discount) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if _, err := s.discounts.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("failed to create discount: %w", err)
	}
	return nil
}

func (s *mongoStore) DeleteDiscount(ctx context.Context, id string) error {
	res, err := s.discounts.DeleteOne(ctx, discountFilter(id))
	if err != nil {
		return fmt.Errorf("failed to delete discount %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// bookingDoc decodes embedded bookings; timestamps are written either as BSON dates or
// as ISO strings depending on which client created the booking.
type bookingDoc struct {
	UserID    string        `bson:"userId"`
	UserEmail string        `bson:"userEmail"`
	StartTime bson.RawValue `bson:"startTime"`
	EndTime   bson.RawValue `bson:"endTime"`
	Price     float64       `bson:"price"`
	Status    string        `bson:"status"`
}

type deviceDoc struct {
	ID       string       `bson:"id"`
	Type     string       `bson:"type"`
	Zone     string       `bson:"zone"`
	Bookings []bookingDoc `bson:"bookings"`
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// decodeTimestamp returns the zero time for missing or unparseable values. Strings
// without a zone are read in loc.
func decodeTimestamp(v bson.RawValue, loc *time.Location) time.Time {
	switch v.Type {
	case bson.TypeDateTime:
		return v.Time().UTC()
	case bson.TypeString:
		raw := v.StringValue()
		for _, layout := range isoLayouts {
			if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

func (s *mongoStore) toDevice(d deviceDoc) model.Device {
	dev := model.Device{ID: d.ID, Type: d.Type, Zone: d.Zone}
	for i, b := range d.Bookings {
		booking := model.Booking{
			DeviceID:  d.ID,
			UserID:    b.UserID,
			UserEmail: b.UserEmail,
			StartTime: decodeTimestamp(b.StartTime, s.loc),
			EndTime:   decodeTimestamp(b.EndTime, s.loc),
			Price:     b.Price,
			Status:    b.Status,
		}
		if booking.StartTime.IsZero() || booking.EndTime.IsZero() {
			s.log.Warn().
				Str("device_id", d.ID).
				Int("booking", i).
				Str("user_id", b.UserID).
				Msg("booking has unreadable timestamps")
		}
		dev.Bookings = append(dev.Bookings, booking)
	}
	sort.SliceStable(dev.Bookings, func(i, j int) bool {
		return dev.Bookings[i].StartTime.Before(dev.Bookings[j].StartTime)
	})
	return dev
}

func (s *mongoStore) ListDevices(ctx context.Context) ([]model.Device, error) {
	cur, err := s.devices.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	var docs []deviceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}

	devices := make([]model.Device, 0, len(docs))
	for _, d := range docs {
		devices = append(devices, s.toDevice(d))
	}
	return devices, nil
}

type userDoc struct {
	ID        interface{} `bson:"_id"`
	Username  string      `bson:"username"`
	Email     string      `bson:"email"`
	CreatedAt time.Time   `bson:"createdAt"`
}

func (s *mongoStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	filter := bson.M{"_id": id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		filter = bson.M{"_id": oid}
	}

	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, err)
	}

	u := &model.User{ID: id, Username: doc.Username, Email: doc.Email, CreatedAt: doc.CreatedAt}
	if oid, ok := doc.ID.(primitive.ObjectID); ok {
		u.ID = oid.Hex()
	}
	return u, nil
}

func (s *mongoStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.subscriptions.FindOne(ctx, bson.M{"endpoint": endpoint}).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return &sub, nil
}

func (s *mongoStore) SubscriptionsForZone(ctx context.Context, zone string) ([]model.PushSubscription, error) {
	filter := bson.M{}
	if zone != model.AllZones {
		filter = bson.M{"zone": bson.M{"$in": []string{zone, model.AllZones}}}
	}
	cur, err := s.subscriptions.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for zone %q: %w", zone, err)
	}
	var subs []model.PushSubscription
	if err := cur.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("failed to decode subscriptions: %w", err)
	}
	return subs, nil
}

func (s *mongoStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription) error {
	if sub.Zone == "" {
		sub.Zone = model.AllZones
	}
	_, err := s.subscriptions.UpdateOne(ctx,
		bson.M{"endpoint": sub.Endpoint},
		bson.M{
			"$set":         bson.M{"p256dh": sub.P256DH, "auth": sub.Auth, "zone": sub.Zone},
			"$setOnInsert": bson.M{"createdAt": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *mongoStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	res, err := s.subscriptions.DeleteOne(ctx, bson.M{"endpoint": endpoint})
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
