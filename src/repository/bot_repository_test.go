package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"tradingcore/src/model"
)

func TestBotRepositoryFindActive(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&BotRepository{}).WithDB(mockDB)

	rows := sqlmock.NewRows([]string{"id", "name", "venue", "symbol", "strategy", "interval", "is_active", "parameters"}).
		AddRow(1, "trend", "paper", "BTC/USDT", "RSI_SMA_MACD", "1h", true, `{"rsi":{"period":14,"overbought":70,"oversold":30}}`).
		AddRow(4, "bands", "paper", "ETH/USDT", "BOLLINGER_BANDS", "4h", true, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bots" WHERE is_active = $1 ORDER BY id ASC`)).
		WithArgs(true).
		WillReturnRows(rows)

	bots, err := repo.FindActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bots) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(bots))
	}
	if bots[0].Parameters.RSI.Period != 14 {
		t.Fatalf("parameters not decoded: %+v", bots[0].Parameters)
	}
	if bots[1].Strategy != model.StrategyBollingerBands || bots[1].Parameters != (model.StrategyParameters{}) {
		t.Fatalf("unexpected bot: %+v", bots[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBotRepositoryFindByIDNotFound(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&BotRepository{}).WithDB(mockDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bots" WHERE "bots"."id" = $1 ORDER BY "bots"."id" LIMIT $2`)).
		WithArgs(uint(3), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	bot, err := repo.FindByID(context.Background(), 3)
	if err != nil {
		t.Fatalf("expected nil error for missing bot, got %v", err)
	}
	if bot != nil {
		t.Fatalf("expected nil bot, got %+v", bot)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBotRepositorySetActive(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&BotRepository{}).WithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bots" SET "is_active"=.*,"updated_at"=.* WHERE id = .*`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SetActive(context.Background(), 2, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBotRepositoryUpdatePerformance(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&BotRepository{}).WithDB(mockDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bots" SET "performance"=.*,"updated_at"=.* WHERE id = .*`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdatePerformance(context.Background(), 2, model.PerformanceSnapshot{TotalTrades: 3, WinRate: 66.7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBacktestResultRepositoryFindByBot(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&BacktestResultRepository{}).WithDB(mockDB)

	rows := sqlmock.NewRows([]string{"id", "bot_id", "symbol", "strategy", "total_trades"}).
		AddRow(9, 2, "BTC/USDT", "HYBRID", 12)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "backtest_results" WHERE bot_id = $1 ORDER BY created_at DESC`)).
		WithArgs(uint(2), 5).
		WillReturnRows(rows)

	results, err := repo.FindByBot(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].TotalTrades != 12 {
		t.Fatalf("unexpected results: %+v", results)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
