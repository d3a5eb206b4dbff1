package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/metrics"
	"computer-club-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Store is what the workers read and clean up.
type Store interface {
	GetDiscount(ctx context.Context, id string) (*model.Discount, error)
	SubscriptionsForZone(ctx context.Context, zone string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Announcement is the JSON payload shown by the service worker.
type Announcement struct {
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	DiscountID string  `json:"discountId"`
	Zone       string  `json:"zone"`
	Percentage float64 `json:"discountPercentage"`
}

// WorkerPool manages a pool of workers announcing new discounts to push subscribers.
type WorkerPool struct {
	size    int
	jobs    chan string
	store   Store
	webpush *webpush.Options
	sender  NotificationSender
	loc     *time.Location
	log     zerolog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, st Store, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*16),
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		loc:     time.Local,
		log:     logging.Component("notification"),
	}
}

// InLocation sets the timezone used to format dates in announcements.
func (wp *WorkerPool) InLocation(loc *time.Location) *WorkerPool {
	if loc != nil {
		wp.loc = loc
	}
	return wp
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug().Int("worker", id).Msg("worker started")
	for {
		select {
		case discountID := <-wp.jobs:
			wp.announce(ctx, discountID)
		case <-ctx.Done():
			wp.log.Debug().Int("worker", id).Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues an announcement for a discount. It never blocks the caller; when the
// queue is full the announcement is dropped.
func (wp *WorkerPool) Dispatch(discountID string) {
	select {
	case wp.jobs <- discountID:
	default:
		wp.log.Warn().Str("discount_id", discountID).Msg("announcement queue full, dropping")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

func (wp *WorkerPool) announce(ctx context.Context, discountID string) {
	d, err := wp.store.GetDiscount(ctx, discountID)
	if err != nil {
		wp.log.Warn().Err(err).Str("discount_id", discountID).Msg("cannot load discount to announce")
		return
	}

	subscriptions, err := wp.store.SubscriptionsForZone(ctx, d.Zone)
	if err != nil {
		wp.log.Error().Err(err).Str("zone", d.Zone).Msg("error fetching subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(announcementFor(d, wp.loc))
	if err != nil {
		wp.log.Error().Err(err).Msg("cannot encode announcement")
		return
	}

	wp.log.Info().Int("subscriptions", len(subscriptions)).Str("discount_id", d.ID).Msg("sending discount announcement")
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func announcementFor(d *model.Discount, loc *time.Location) Announcement {
	where := "zone " + d.Zone
	if d.Zone == model.AllZones {
		where = "every zone"
	}
	body := fmt.Sprintf("-%g%% in %s until %s", d.DiscountPercentage, where, d.EndDate.In(loc).Format("02.01"))
	if d.SpecificPeriod != "" {
		body += ", daily " + d.SpecificPeriod
	}
	return Announcement{
		Title:      "New discount",
		Body:       body,
		DiscountID: d.ID,
		Zone:       d.Zone,
		Percentage: d.DiscountPercentage,
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.PushNotificationsSent.WithLabelValues("failed").Inc()
		wp.log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("error sending notification")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		metrics.PushNotificationsSent.WithLabelValues("gone").Inc()
		wp.log.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired, deleting")
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
		return
	}
	metrics.PushNotificationsSent.WithLabelValues("sent").Inc()
}
