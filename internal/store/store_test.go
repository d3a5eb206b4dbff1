package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

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

func TestGormStore_DeleteDiscount(t *testing.T) {
	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedErr      error
		wantErr          bool
	}{
		{
			name: "Existing discount is deleted",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "discounts" WHERE id = $1`)).
					WithArgs("d-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "Unknown discount reports not found",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "discounts" WHERE id = $1`)).
					WithArgs("d-1").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectedErr: ErrNotFound,
			wantErr:     true,
		},
		{
			name: "Database failure is wrapped",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "discounts"`)).
					WithArgs("d-1").
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			err := store.DeleteDiscount(context.Background(), "d-1")
			if tc.wantErr {
				require.Error(t, err)
				if tc.expectedErr != nil {
					assert.ErrorIs(t, err, tc.expectedErr)
				} else {
					assert.NotErrorIs(t, err, ErrNotFound)
				}
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_ActiveDiscountsQuery(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "discounts" WHERE (zone = $1 OR zone = $2) AND start_date <= $3 AND end_date >= $4 ORDER BY start_date,id`)).
		WithArgs("VIP", "all", Any{}, Any{}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "zone", "start_date", "end_date", "discount_percentage", "specific_period"}).
			AddRow("d-1", "VIP", at.Add(-time.Hour), at.Add(time.Hour), 10.0, "").
			AddRow("d-2", "all", at.Add(-time.Minute), at.Add(time.Hour), 20.0, "18:00-20:00"))

	discounts, err := store.ActiveDiscounts(context.Background(), "VIP", at)
	require.NoError(t, err)
	require.Len(t, discounts, 2)
	assert.Equal(t, "d-1", discounts[0].ID)
	assert.Equal(t, "18:00-20:00", discounts[1].SpecificPeriod)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetUserNotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1`)).
		WithArgs("ghost", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}))

	_, err := store.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
