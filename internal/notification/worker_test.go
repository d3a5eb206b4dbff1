package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"computer-club-backend/internal/model"
	"computer-club-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func discountRows(id, zone string, pct float64, period string) *sqlmock.Rows {
	end := time.Date(2025, 6, 7, 20, 59, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "zone", "start_date", "end_date", "discount_percentage", "specific_period", "created_at"}).
		AddRow(id, zone, end.AddDate(0, 0, -7), end, pct, period, end.AddDate(0, 0, -8))
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(db), &webpush.Options{})

	// Dispatch a job
	wp.Dispatch("d-123")

	// Check if the job is in the channel
	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "d-123", job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchNeverBlocks(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(db), &webpush.Options{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(wp.Jobs())+5; i++ {
			wp.Dispatch("d")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	assert.Len(t, wp.Jobs(), cap(wp.Jobs()))
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	club := time.FixedZone("club", 3*60*60)
	wp := NewWorkerPool(1, store.NewGormStore(gormDB), &webpush.Options{}).InLocation(club)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends announcement for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)

				var a Announcement
				assert.NoError(t, json.Unmarshal(payload, &a))
				assert.Equal(t, "d-1", a.DiscountID)
				assert.Equal(t, "-20% in zone VIP until 07.06, daily 18:00-22:00", a.Body)
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "discounts" WHERE id = \$1`).
			WithArgs("d-1", 1).
			WillReturnRows(discountRows("d-1", "VIP", 20, "18:00-22:00"))
		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE zone = \$1 OR zone = \$2`).
			WithArgs("VIP", model.AllZones).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "zone", "created_at"}).
				AddRow("https://example.com/push", "test_p256dh", "test_auth", "VIP", time.Now()))

		wp.Dispatch("d-1")
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "discounts" WHERE id = \$1`).
			WithArgs("d-2", 1).
			WillReturnRows(discountRows("d-2", model.AllZones, 10, ""))
		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions"`).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "zone", "created_at"}).
				AddRow("https://example.com/expired", "k", "a", "Pro", time.Now()))
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch("d-2")

		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	})

	t.Run("skips discounts deleted before announcing", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("nothing should be sent")
				return nil, nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "discounts" WHERE id = \$1`).
			WithArgs("d-3", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		wp.Dispatch("d-3")
		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	})
}

func TestAnnouncementFor(t *testing.T) {
	d := &model.Discount{ID: "d", Zone: model.AllZones, DiscountPercentage: 12.5,
		EndDate: time.Date(2025, 12, 31, 21, 59, 0, 0, time.UTC)}
	a := announcementFor(d, time.FixedZone("club", 2*60*60))
	assert.Equal(t, "-12.5% in every zone until 31.12", a.Body)
	assert.Equal(t, 12.5, a.Percentage)
}
