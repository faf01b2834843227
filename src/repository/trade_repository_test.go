package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tradingcore/src/model"
)

func TestTradeRepositoryFindReconcilable(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(mockDB)

	createdAt := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "exchange_order_id", "bot_id", "symbol", "side", "status", "quantity", "created_at", "updated_at"}).
		AddRow(1, "A", 7, "BTC/USDT", "buy", "open", 0.5, createdAt, createdAt).
		AddRow(2, "B", 7, "BTC/USDT", "sell", "partially_filled", 0.5, createdAt.Add(time.Hour), createdAt.Add(time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" WHERE bot_id = $1 AND status IN ($2,$3,$4) ORDER BY id ASC`)).
		WithArgs(uint(7), model.TradeStatusPending, model.TradeStatusOpen, model.TradeStatusPartiallyFilled).
		WillReturnRows(rows)

	trades, err := repo.FindReconcilable(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].ExchangeOrderID != "A" || trades[1].Status != model.TradeStatusPartiallyFilled {
		t.Fatalf("unexpected trades: %+v", trades)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTradeRepositoryFindByIDNotFound(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(mockDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" WHERE "trades"."id" = $1 ORDER BY "trades"."id" LIMIT $2`)).
		WithArgs(uint(9), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	trade, err := repo.FindByID(context.Background(), 9)
	if err != nil {
		t.Fatalf("expected nil error for missing trade, got %v", err)
	}
	if trade != nil {
		t.Fatalf("expected nil trade, got %+v", trade)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTradeRepositoryUpdateFields(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "trades" SET .*"status"=.* WHERE id = .*`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateFields(context.Background(), 3, map[string]interface{}{"status": model.TradeStatusFilled})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendNote(t *testing.T) {
	if got := appendNote("", "bot stopped"); got != "bot stopped" {
		t.Fatalf("unexpected note %q", got)
	}
	if got := appendNote("first", "second"); got != "first; second" {
		t.Fatalf("unexpected note %q", got)
	}
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}
