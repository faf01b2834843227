package ledger

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradingcore/src/connectors"
	"tradingcore/src/errs"
	"tradingcore/src/model"
	"tradingcore/src/monitoring"
	"tradingcore/src/repository"
	"tradingcore/src/risk"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.TradeRecord{}))
	return db
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *repository.TradeRepository, *gorm.DB) {
	db := newTestDB(t)
	repo := (&repository.TradeRepository{}).WithDB(db)
	clock := &stepClock{now: t0}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(repo, opts...), repo, db
}

func sizedBuy(t *testing.T) risk.SizedOrder {
	o := risk.Size(model.SideBuy, 100, risk.Parameters{
		AccountBalance:  10000,
		RiskPercentage:  1,
		RiskRewardRatio: 2,
		MaxPositionSize: 1000,
		MaxRiskPerTrade: 2,
	})
	require.True(t, o.Valid, o.RejectionReason)
	return o
}

type fakeVenue struct {
	connectors.Exchange
	orders  []connectors.VenueOrder
	listErr error
	listed  []string
}

func (f *fakeVenue) Name() string { return "fake" }

func (f *fakeVenue) ListOrders(_ context.Context, symbol string) ([]connectors.VenueOrder, error) {
	f.listed = append(f.listed, symbol)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.orders, nil
}

type recordingAlerter struct {
	alerts []monitoring.Alert
}

func (a *recordingAlerter) Critical(_ context.Context, alert monitoring.Alert) {
	a.alerts = append(a.alerts, alert)
}

func TestRecordSubmissionFilled(t *testing.T) {
	l, repo, _ := newTestLedger(t)
	ctx := context.Background()

	trade, err := l.RecordSubmission(ctx, Submission{BotID: 1, Venue: "paper", Symbol: "BTC/USDT", Order: sizedBuy(t)},
		&connectors.VenueOrder{ID: "V-1", Status: connectors.OrderStatusClosed, Amount: 100, Filled: 100, Average: 100.5, Fee: 0.1}, nil)
	require.NoError(t, err)
	require.Equal(t, model.TradeStatusFilled, trade.Status)
	require.NotNil(t, trade.FilledAt)

	stored, err := repo.FindByExchangeOrderID(ctx, "V-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, 100.5, stored.Price)
	require.InDelta(t, 99.0, stored.StopLoss, 1e-9)
	require.InDelta(t, 102.0, stored.TakeProfit, 1e-9)
	require.InDelta(t, 10050.0, stored.Cost, 1e-9)
}

func TestRecordSubmissionOpen(t *testing.T) {
	l, _, _ := newTestLedger(t)

	trade, err := l.RecordSubmission(context.Background(), Submission{BotID: 1, Symbol: "BTC/USDT", Order: sizedBuy(t)},
		&connectors.VenueOrder{ID: "V-2", Status: connectors.OrderStatusOpen, Amount: 100}, nil)
	require.NoError(t, err)
	require.Equal(t, model.TradeStatusOpen, trade.Status)
	require.Nil(t, trade.FilledAt)
}

func TestRecordSubmissionFailureIsPersisted(t *testing.T) {
	l, repo, _ := newTestLedger(t)
	ctx := context.Background()

	submitErr := &errs.InvalidOrderError{Venue: "paper", Code: "11051", Reason: "insufficient balance"}
	trade, err := l.RecordSubmission(ctx, Submission{BotID: 3, Symbol: "BTC/USDT", Order: sizedBuy(t)}, nil, submitErr)
	require.NoError(t, err)
	require.Equal(t, model.TradeStatusFailed, trade.Status)
	require.True(t, strings.HasPrefix(trade.ExchangeOrderID, FailedIDPrefix))
	require.Contains(t, trade.Notes, "insufficient balance")

	count, err := repo.CountByBot(ctx, 3)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestMarkUnprotectedRaisesCriticalAlert(t *testing.T) {
	alerter := &recordingAlerter{}
	l, repo, _ := newTestLedger(t, WithAlerter(alerter))
	ctx := context.Background()

	trade, err := l.RecordSubmission(ctx, Submission{BotID: 1, Symbol: "BTC/USDT", Order: sizedBuy(t)},
		&connectors.VenueOrder{ID: "V-3", Status: connectors.OrderStatusClosed, Amount: 100, Filled: 100, Average: 100}, nil)
	require.NoError(t, err)

	require.NoError(t, l.MarkUnprotected(ctx, trade, errors.New("stop loss rejected")))

	stored, err := repo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	require.True(t, stored.Unprotected)
	require.Contains(t, stored.Notes, "UNPROTECTED")
	require.Len(t, alerter.alerts, 1)
	require.Equal(t, trade.ID, *alerter.alerts[0].TradeID)
}

func TestMapVenueStatus(t *testing.T) {
	tests := []struct {
		name    string
		order   connectors.VenueOrder
		current string
		want    string
	}{
		{"closed full", connectors.VenueOrder{Status: "closed", Amount: 1, Filled: 1}, model.TradeStatusOpen, model.TradeStatusFilled},
		{"done full", connectors.VenueOrder{Status: "done", Amount: 1, Filled: 1}, model.TradeStatusOpen, model.TradeStatusFilled},
		{"closed partial", connectors.VenueOrder{Status: "closed", Amount: 1, Filled: 0.4}, model.TradeStatusOpen, model.TradeStatusPartiallyFilled},
		{"closed unfilled", connectors.VenueOrder{Status: "closed", Amount: 1}, model.TradeStatusPending, model.TradeStatusPending},
		{"canceled", connectors.VenueOrder{Status: "canceled", Amount: 1}, model.TradeStatusOpen, model.TradeStatusCancelled},
		{"expired", connectors.VenueOrder{Status: "expired", Amount: 1}, model.TradeStatusOpen, model.TradeStatusCancelled},
		{"rejected", connectors.VenueOrder{Status: "rejected", Amount: 1}, model.TradeStatusPending, model.TradeStatusCancelled},
		{"open partial", connectors.VenueOrder{Status: "open", Amount: 1, Filled: 0.2}, model.TradeStatusOpen, model.TradeStatusPartiallyFilled},
		{"open untouched", connectors.VenueOrder{Status: "open", Amount: 1}, model.TradeStatusOpen, model.TradeStatusOpen},
		{"unknown", connectors.VenueOrder{Status: "new", Amount: 1}, model.TradeStatusPending, model.TradeStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapVenueStatus(tt.order, tt.current); got != tt.want {
				t.Fatalf("MapVenueStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

func seedTrade(t *testing.T, repo *repository.TradeRepository, trade model.TradeRecord) *model.TradeRecord {
	t.Helper()
	if trade.Symbol == "" {
		trade.Symbol = "BTC/USDT"
	}
	if trade.Side == "" {
		trade.Side = model.SideBuy
	}
	require.NoError(t, repo.Create(context.Background(), &trade))
	return &trade
}

func TestReconcileIsIdempotent(t *testing.T) {
	l, repo, db := newTestLedger(t)
	ctx := context.Background()

	filled := seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "A", Status: model.TradeStatusOpen, Quantity: 1, Price: 100, CreatedAt: t0})
	partial := seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "B", Status: model.TradeStatusOpen, Quantity: 1, Price: 100, CreatedAt: t0})
	cancelled := seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "C", Status: model.TradeStatusPending, Quantity: 1, Price: 100, CreatedAt: t0})
	missing := seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "D", Status: model.TradeStatusOpen, Quantity: 1, Price: 100, CreatedAt: t0})
	seedTrade(t, repo, model.TradeRecord{BotID: 2, ExchangeOrderID: "E", Status: model.TradeStatusOpen, Quantity: 1, Price: 100, CreatedAt: t0})

	venue := &fakeVenue{orders: []connectors.VenueOrder{
		{ID: "A", Status: "closed", Amount: 1, Filled: 1, Average: 101, Fee: 0.1},
		{ID: "B", Status: "open", Amount: 1, Filled: 0.5, Average: 100.5},
		{ID: "C", Status: "canceled", Amount: 1},
		{ID: "E", Status: "closed", Amount: 1, Filled: 1, Average: 99},
	}}

	updates := 0
	require.NoError(t, db.Callback().Update().After("gorm:update").Register("count_updates", func(*gorm.DB) {
		updates++
	}))

	n, err := l.Reconcile(ctx, "fake", 1, venue)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, updates)
	require.Equal(t, []string{"BTC/USDT"}, venue.listed)

	got, _ := repo.FindByID(ctx, filled.ID)
	require.Equal(t, model.TradeStatusFilled, got.Status)
	require.Equal(t, 1.0, got.ExecutedQty)
	require.Equal(t, 101.0, got.AvgExecutedPrice)
	require.InDelta(t, 101.0, got.Cost, 1e-9)
	require.NotNil(t, got.FilledAt)

	got, _ = repo.FindByID(ctx, partial.ID)
	require.Equal(t, model.TradeStatusPartiallyFilled, got.Status)
	require.Equal(t, 0.5, got.ExecutedQty)

	got, _ = repo.FindByID(ctx, cancelled.ID)
	require.Equal(t, model.TradeStatusCancelled, got.Status)

	got, _ = repo.FindByID(ctx, missing.ID)
	require.Equal(t, model.TradeStatusOpen, got.Status)

	n, err = l.Reconcile(ctx, "fake", 1, venue)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, 3, updates, "second pass must not write")
}

func TestReconcileListFailure(t *testing.T) {
	l, repo, _ := newTestLedger(t)
	seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "A", Status: model.TradeStatusOpen, Quantity: 1, CreatedAt: t0})

	venueErr := &errs.TransientVenueError{Venue: "fake", Op: "listOrders", Err: errors.New("timeout")}
	_, err := l.Reconcile(context.Background(), "fake", 1, &fakeVenue{listErr: venueErr})
	require.Error(t, err)
	require.True(t, errs.IsTransient(err))
}

func TestReconcileNothingOpen(t *testing.T) {
	l, _, _ := newTestLedger(t)
	venue := &fakeVenue{}

	n, err := l.Reconcile(context.Background(), "fake", 1, venue)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, venue.listed)
}

func TestCloseAndComputeProfit(t *testing.T) {
	tests := []struct {
		name      string
		entrySide string
		entryPx   float64
		exitPx    float64
		entryQty  float64
		exitQty   float64
		wantPnl   float64
		wantPct   float64
	}{
		{name: "long win", entrySide: model.SideBuy, entryPx: 100, exitPx: 110, entryQty: 2, exitQty: 1.5, wantPnl: 15, wantPct: 10},
		{name: "long loss", entrySide: model.SideBuy, entryPx: 100, exitPx: 95, entryQty: 1, exitQty: 1, wantPnl: -5, wantPct: -5},
		{name: "short win", entrySide: model.SideSell, entryPx: 100, exitPx: 90, entryQty: 1, exitQty: 3, wantPnl: 10, wantPct: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, repo, _ := newTestLedger(t)
			ctx := context.Background()

			entry := seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "IN", Side: tt.entrySide, Status: model.TradeStatusFilled,
				Quantity: tt.entryQty, ExecutedQty: tt.entryQty, AvgExecutedPrice: tt.entryPx, CreatedAt: t0})
			exitAt := t0.Add(time.Hour)
			exit := seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "OUT", Side: model.OppositeSide(tt.entrySide), Status: model.TradeStatusFilled,
				Quantity: tt.exitQty, ExecutedQty: tt.exitQty, AvgExecutedPrice: tt.exitPx, CreatedAt: exitAt})

			pnl, err := l.CloseAndComputeProfit(ctx, entry.ID)
			require.NoError(t, err)
			require.InDelta(t, tt.wantPnl, pnl, 1e-9)

			got, _ := repo.FindByID(ctx, entry.ID)
			require.Equal(t, model.TradeStatusClosed, got.Status)
			require.InDelta(t, tt.wantPnl, *got.ProfitLoss, 1e-9)
			require.InDelta(t, tt.wantPct, *got.ProfitLossPercent, 1e-9)
			require.True(t, got.ClosedAt.Equal(exitAt))

			out, _ := repo.FindByID(ctx, exit.ID)
			require.Equal(t, model.TradeStatusFilled, out.Status)
			require.InDelta(t, -tt.wantPnl, *out.ProfitLoss, 1e-9)

			_, err = l.CloseAndComputeProfit(ctx, entry.ID)
			require.Error(t, err, "closed trades cannot be settled twice")
		})
	}
}

func TestCloseAndComputeProfitWithoutExit(t *testing.T) {
	l, repo, _ := newTestLedger(t)
	ctx := context.Background()

	entry := seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "IN", Status: model.TradeStatusFilled, Quantity: 1, Price: 100, CreatedAt: t0})
	// an earlier sell is not an exit
	seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "OLD", Side: model.SideSell, Status: model.TradeStatusFilled, Quantity: 1, Price: 90, CreatedAt: t0.Add(-time.Hour)})

	_, err := l.CloseAndComputeProfit(ctx, entry.ID)
	require.ErrorIs(t, err, ErrNoExitTrade)

	_, err = l.CloseAndComputeProfit(ctx, 999)
	require.ErrorIs(t, err, errs.ErrTradeNotFound)
}

func TestCloseSettledUsesEachExitOnce(t *testing.T) {
	l, repo, _ := newTestLedger(t)
	ctx := context.Background()

	seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "B1", Status: model.TradeStatusFilled, Quantity: 1, Price: 100, CreatedAt: t0})
	seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "B2", Status: model.TradeStatusFilled, Quantity: 1, Price: 102, CreatedAt: t0.Add(time.Minute)})
	seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "S1", Side: model.SideSell, Status: model.TradeStatusFilled, Quantity: 1, Price: 110, CreatedAt: t0.Add(2 * time.Minute)})

	closed, err := l.CloseSettled(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	b2, _ := repo.FindByExchangeOrderID(ctx, "B2")
	require.Equal(t, model.TradeStatusFilled, b2.Status)
	require.Nil(t, b2.ProfitLoss)
}

func pnl(v float64) *float64 { return &v }

func TestPerformanceAndStatistics(t *testing.T) {
	l, repo, _ := newTestLedger(t)
	ctx := context.Background()

	for i, p := range []float64{10, -5, 20} {
		seedTrade(t, repo, model.TradeRecord{
			BotID:           1,
			ExchangeOrderID: strconv.Itoa(i),
			Status:          model.TradeStatusClosed,
			Quantity:        1,
			Price:           100,
			Fee:             0.5,
			ProfitLoss:      pnl(p),
			CreatedAt:       t0.Add(time.Duration(i) * time.Hour),
		})
	}
	// exit leg: carries the negated P&L but is not counted
	lastAt := t0.Add(5 * time.Hour)
	seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "X", Side: model.SideSell, Status: model.TradeStatusFilled,
		Quantity: 1, Price: 120, Fee: 0.5, ProfitLoss: pnl(-20), CreatedAt: lastAt})

	snap, err := l.Performance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, snap.TotalTrades)
	require.Equal(t, 2, snap.WinningTrades)
	require.Equal(t, 1, snap.LosingTrades)
	require.InDelta(t, 200.0/3, snap.WinRate, 1e-9)
	require.InDelta(t, 30.0, snap.TotalProfit, 1e-9)
	require.InDelta(t, 5.0, snap.TotalLoss, 1e-9)
	require.InDelta(t, 25.0, snap.NetProfit, 1e-9)
	require.InDelta(t, 5.0, snap.MaxDrawdown, 1e-9)

	mean := 25.0 / 3
	variance := (math.Pow(10-mean, 2) + math.Pow(-5-mean, 2) + math.Pow(20-mean, 2)) / 3
	require.InDelta(t, mean/math.Sqrt(variance)*math.Sqrt(252), snap.SharpeRatio, 1e-9)

	require.NotNil(t, snap.LastTradeAt)
	require.True(t, snap.LastTradeAt.Equal(lastAt))
	require.Len(t, snap.RecentTrades, 4)

	stats, err := l.Statistics(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalTrades)
	require.InDelta(t, 25.0, stats.TotalProfit, 1e-9)
	require.InDelta(t, 2.0, stats.TotalFees, 1e-9)
	require.InDelta(t, 23.0, stats.NetProfit, 1e-9)
	require.InDelta(t, 15.0, stats.AverageWin, 1e-9)
	require.InDelta(t, 5.0, stats.AverageLoss, 1e-9)
	require.InDelta(t, 6.0, stats.ProfitFactor, 1e-9)
}

func TestBuildPerformanceBoundsRecentTrades(t *testing.T) {
	history := make([]model.TradeRecord, 150)
	for i := range history {
		history[i] = model.TradeRecord{ID: uint(i + 1), Side: model.SideBuy, Status: model.TradeStatusFilled, CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
	}

	snap := BuildPerformance(history)
	require.Len(t, snap.RecentTrades, RecentTradesLimit)
	require.EqualValues(t, 51, snap.RecentTrades[0].ID)
	require.EqualValues(t, 150, snap.RecentTrades[RecentTradesLimit-1].ID)
	require.Zero(t, snap.SharpeRatio)
	require.Zero(t, snap.TotalTrades)
}

func TestCancelOpen(t *testing.T) {
	l, repo, _ := newTestLedger(t)
	ctx := context.Background()

	open := seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "A", Status: model.TradeStatusOpen, Quantity: 1, CreatedAt: t0})
	done := seedTrade(t, repo, model.TradeRecord{BotID: 1, ExchangeOrderID: "B", Status: model.TradeStatusFilled, Quantity: 1, CreatedAt: t0})

	trades, err := l.CancelOpen(ctx, 1, "bot stopped")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, open.ID, trades[0].ID)

	got, _ := repo.FindByID(ctx, open.ID)
	require.Equal(t, model.TradeStatusCancelled, got.Status)
	require.NotNil(t, got.ClosedAt)
	require.Equal(t, "bot stopped", got.Notes)

	got, _ = repo.FindByID(ctx, done.ID)
	require.Equal(t, model.TradeStatusFilled, got.Status)
}
