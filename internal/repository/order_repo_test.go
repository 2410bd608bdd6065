package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"quickcart/internal/model"
)

func TestOrderRepository_UpdateStatusGuarded(t *testing.T) {
	db, mock, err := setupOutboxTestDB()
	assert.NoError(t, err)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET `confirmed_at`=\\?,`status`=\\? WHERE id = \\? AND status = \\?").
		WithArgs(sqlmock.AnyArg(), model.OrderStatusConfirmed, uint64(1), model.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repo.UpdateStatus(context.Background(), 1, model.OrderStatusPending, model.OrderStatusConfirmed,
		map[string]interface{}{"confirmed_at": time.Now()})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatusLosesRace(t *testing.T) {
	db, mock, err := setupOutboxTestDB()
	assert.NoError(t, err)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewOrderRepository(db)

	// Another transaction moved the row out of PENDING; zero rows match
	// the guard and the update must surface that instead of silently
	// overwriting the winner.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET `cancellation_reason`=\\?,`cancelled_at`=\\?,`status`=\\? WHERE id = \\? AND status = \\?").
		WithArgs("changed my mind", sqlmock.AnyArg(), model.OrderStatusCancelled, uint64(1), model.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = repo.UpdateStatus(context.Background(), 1, model.OrderStatusPending, model.OrderStatusCancelled,
		map[string]interface{}{"cancelled_at": time.Now(), "cancellation_reason": "changed my mind"})
	assert.ErrorIs(t, err, ErrStatusChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_MarkSLABreachedOnce(t *testing.T) {
	db, mock, err := setupOutboxTestDB()
	assert.NoError(t, err)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET `sla_breached_at`=\\? WHERE id = \\? AND sla_breached_at IS NULL").
		WithArgs(sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repo.MarkSLABreached(context.Background(), 1, time.Now())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
