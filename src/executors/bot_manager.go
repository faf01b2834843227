package executors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/connectors"
	"tradingcore/src/errs"
	"tradingcore/src/ledger"
	"tradingcore/src/model"
	"tradingcore/src/monitoring"
	"tradingcore/src/risk"
	"tradingcore/src/signal"
)

// BotStore persists bot lifecycle and reporting fields. *repository.BotRepository satisfies it.
type BotStore interface {
	SetActive(ctx context.Context, id uint, active bool) error
	UpdateLastTradeAt(ctx context.Context, id uint, at time.Time) error
	UpdatePerformance(ctx context.Context, id uint, snap model.PerformanceSnapshot) error
}

// Deps are the collaborators shared by every bot of a manager.
type Deps struct {
	// Exchange is expected to be wrapped in connectors.ResilientExchange.
	Exchange connectors.Exchange
	// Candles defaults to Exchange; set it to put a cache in front of market data.
	Candles  connectors.CandleSource
	Ledger   *ledger.Ledger
	Bots     BotStore
	Recorder *monitoring.Recorder
	Sessions *risk.SessionSizer
	Config   Config
	Now      func() time.Time
}

// BotConfig is everything a running bot needs. It is fixed for the lifetime of the run.
type BotConfig struct {
	BotID         uint
	Name          string
	Venue         string
	Symbol        string
	Strategy      model.StrategyKind
	Parameters    model.StrategyParameters
	Interval      string
	MinConfidence float64
	Cooldown      time.Duration
	Risk          model.RiskSettings
	LastTradeAt   *time.Time
	// Period overrides the interval table, mostly for tests.
	Period time.Duration
}

// BotConfigFromModel reads a stored bot, falling back to cfg for unset thresholds.
func BotConfigFromModel(b *model.Bot, cfg Config) BotConfig {
	out := BotConfig{
		BotID:         b.ID,
		Name:          b.Name,
		Venue:         b.Venue,
		Symbol:        b.Symbol,
		Strategy:      b.Strategy,
		Parameters:    b.Parameters,
		Interval:      b.Interval,
		MinConfidence: b.MinConfidence,
		Cooldown:      time.Duration(b.CooldownSeconds) * time.Second,
		Risk:          b.RiskManagement,
		LastTradeAt:   b.LastTradeAt,
	}
	if out.MinConfidence <= 0 {
		out.MinConfidence = cfg.MinConfidence
	}
	if out.Cooldown <= 0 {
		out.Cooldown = cfg.CooldownPeriod
	}
	return out
}

// BotStatus is a point in time view of a running bot.
type BotStatus struct {
	BotID       uint               `json:"bot_id"`
	Name        string             `json:"name"`
	Symbol      string             `json:"symbol"`
	Strategy    model.StrategyKind `json:"strategy"`
	Interval    string             `json:"interval"`
	StartedAt   time.Time          `json:"started_at"`
	LastTradeAt *time.Time         `json:"last_trade_at,omitempty"`
	Cycles      int                `json:"cycles"`
	LastOutcome string             `json:"last_outcome,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
	LastSignal  *model.Signal      `json:"last_signal,omitempty"`
}

type botRuntime struct {
	cfg      BotConfig
	strategy signal.Strategy
	cancel   context.CancelFunc
	done     chan struct{}
	// stopping is guarded by BotManager.mu. The runtime stays registered until done closes.
	stopping bool

	mu          sync.Mutex
	startedAt   time.Time
	lastTradeAt time.Time
	cycles      int
	lastOutcome string
	lastErr     string
	lastSignal  *model.Signal
}

func (rt *botRuntime) status() BotStatus {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	st := BotStatus{
		BotID:       rt.cfg.BotID,
		Name:        rt.cfg.Name,
		Symbol:      rt.cfg.Symbol,
		Strategy:    rt.cfg.Strategy,
		Interval:    rt.cfg.Interval,
		StartedAt:   rt.startedAt,
		Cycles:      rt.cycles,
		LastOutcome: rt.lastOutcome,
		LastError:   rt.lastErr,
		LastSignal:  rt.lastSignal,
	}
	if !rt.lastTradeAt.IsZero() {
		at := rt.lastTradeAt
		st.LastTradeAt = &at
	}
	return st
}

// BotManager owns the running bots of the process. It is built once and handed to
// whatever needs to start, stop or inspect bots.
type BotManager struct {
	deps    Deps
	candles connectors.CandleSource
	log     *logger.Entry

	mu   sync.Mutex
	bots map[uint]*botRuntime
}

func NewBotManager(deps Deps) *BotManager {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.CandleLimit <= 0 {
		deps.Config.CandleLimit = DefaultConfig().CandleLimit
	}
	if deps.Config.CycleTimeout <= 0 {
		deps.Config.CycleTimeout = DefaultConfig().CycleTimeout
	}
	if deps.Config.StopTimeout <= 0 {
		deps.Config.StopTimeout = DefaultConfig().StopTimeout
	}

	candles := deps.Candles
	if candles == nil {
		candles = deps.Exchange
	}

	return &BotManager{
		deps:    deps,
		candles: candles,
		log:     logger.WithField("component", "bot_manager"),
		bots:    make(map[uint]*botRuntime),
	}
}

// Start launches the bot loop. Starting a bot that is already running is an error.
func (m *BotManager) Start(ctx context.Context, cfg BotConfig) error {
	strategy, err := signal.New(cfg.Strategy, cfg.Parameters)
	if err != nil {
		return fmt.Errorf("bot %d: %w", cfg.BotID, err)
	}
	if cfg.Symbol == "" {
		return fmt.Errorf("bot %d: symbol is required", cfg.BotID)
	}
	if cfg.Venue != "" && !strings.EqualFold(cfg.Venue, m.deps.Exchange.Name()) {
		return fmt.Errorf("bot %d trades on %s but this process is connected to %s", cfg.BotID, cfg.Venue, m.deps.Exchange.Name())
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = m.deps.Config.MinConfidence
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = m.deps.Config.CooldownPeriod
	}

	m.mu.Lock()
	if prev, running := m.bots[cfg.BotID]; running {
		m.mu.Unlock()
		if prev.stopping {
			return fmt.Errorf("bot %d is still stopping: %w", cfg.BotID, errs.ErrBotAlreadyRunning)
		}
		return fmt.Errorf("bot %d: %w", cfg.BotID, errs.ErrBotAlreadyRunning)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt := &botRuntime{
		cfg:       cfg,
		strategy:  strategy,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: m.deps.Now(),
	}
	if cfg.LastTradeAt != nil {
		rt.lastTradeAt = *cfg.LastTradeAt
	}
	m.bots[cfg.BotID] = rt
	m.mu.Unlock()

	if m.deps.Bots != nil {
		if err := m.deps.Bots.SetActive(ctx, cfg.BotID, true); err != nil {
			m.log.WithError(err).WithField("bot_id", cfg.BotID).Error("Failed to mark bot active")
		}
	}

	go m.run(runCtx, rt)

	m.log.WithFields(map[string]interface{}{
		"bot_id":   cfg.BotID,
		"symbol":   cfg.Symbol,
		"strategy": cfg.Strategy,
		"interval": cfg.Interval,
	}).Info("Bot started")

	return nil
}

// Stop cancels the bot loop and waits for an in-flight cycle to finish, then cancels the
// bot's open trades: locally always, at the venue best-effort. When the cycle outlives
// StopTimeout the cleanup runs once the loop exits, and the bot cannot be started again
// until then.
func (m *BotManager) Stop(ctx context.Context, botID uint) error {
	m.mu.Lock()
	rt, ok := m.bots[botID]
	if !ok || rt.stopping {
		m.mu.Unlock()
		return fmt.Errorf("bot %d: %w", botID, errs.ErrBotNotRunning)
	}
	rt.stopping = true
	m.mu.Unlock()

	rt.cancel()

	wait, cancel := context.WithTimeout(ctx, m.deps.Config.StopTimeout)
	defer cancel()
	select {
	case <-rt.done:
		return m.finishStop(ctx, rt)
	case <-wait.Done():
	}

	m.log.WithField("bot_id", botID).Warn("Bot cycle still running after stop timeout, cleanup deferred")
	go func() {
		<-rt.done
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.deps.Config.CycleTimeout)
		defer cancel()
		if err := m.finishStop(cctx, rt); err != nil {
			m.log.WithError(err).WithField("bot_id", botID).Error("Deferred stop cleanup failed")
		}
	}()
	return nil
}

// finishStop runs after the loop of rt has exited.
func (m *BotManager) finishStop(ctx context.Context, rt *botRuntime) error {
	botID := rt.cfg.BotID

	var stopErr error
	if m.deps.Ledger != nil {
		trades, err := m.deps.Ledger.CancelOpen(ctx, botID, "cancelled: bot stopped")
		if err != nil {
			stopErr = err
		}
		for _, t := range trades {
			if strings.HasPrefix(t.ExchangeOrderID, ledger.FailedIDPrefix) {
				continue
			}
			if err := m.deps.Exchange.CancelOrder(ctx, t.ExchangeOrderID, t.Symbol); err != nil {
				m.log.WithFields(map[string]interface{}{
					"bot_id":            botID,
					"trade_id":          t.ID,
					"exchange_order_id": t.ExchangeOrderID,
				}).WithError(err).Warn("Venue cancel failed while stopping bot")
			}
		}
	}

	if m.deps.Bots != nil {
		if err := m.deps.Bots.SetActive(ctx, botID, false); err != nil {
			stopErr = errors.Join(stopErr, err)
		}
	}

	m.mu.Lock()
	if m.bots[botID] == rt {
		delete(m.bots, botID)
	}
	m.mu.Unlock()

	m.log.WithField("bot_id", botID).Info("Bot stopped")
	return stopErr
}

// StopAll stops every running bot.
func (m *BotManager) StopAll(ctx context.Context) error {
	var all error
	for _, st := range m.Running() {
		if err := m.Stop(ctx, st.BotID); err != nil && !errors.Is(err, errs.ErrBotNotRunning) {
			all = errors.Join(all, err)
		}
	}
	return all
}

// Shutdown ends every loop and waits for in-flight cycles, bounded by ctx. Unlike Stop it
// leaves open trades and the active flag alone so the next process restores the bots.
func (m *BotManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	list := make([]*botRuntime, 0, len(m.bots))
	for id, rt := range m.bots {
		list = append(list, rt)
		delete(m.bots, id)
	}
	m.mu.Unlock()

	for _, rt := range list {
		rt.cancel()
	}
	for _, rt := range list {
		select {
		case <-rt.done:
		case <-ctx.Done():
			return fmt.Errorf("shutdown with cycles in flight: %w", ctx.Err())
		}
	}

	m.log.WithField("bots", len(list)).Info("Bot manager shut down")
	return nil
}

func (m *BotManager) Status(botID uint) (BotStatus, bool) {
	m.mu.Lock()
	rt, ok := m.bots[botID]
	if ok && rt.stopping {
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return BotStatus{}, false
	}
	return rt.status(), true
}

// Running lists the running bots ordered by id. Bots that are stopping are left out.
func (m *BotManager) Running() []BotStatus {
	m.mu.Lock()
	list := make([]*botRuntime, 0, len(m.bots))
	for _, rt := range m.bots {
		if rt.stopping {
			continue
		}
		list = append(list, rt)
	}
	m.mu.Unlock()

	out := make([]BotStatus, 0, len(list))
	for _, rt := range list {
		out = append(out, rt.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BotID < out[j].BotID })
	return out
}
