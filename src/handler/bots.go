package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/errs"
	"tradingcore/src/executors"
	"tradingcore/src/ledger"
	"tradingcore/src/model"
	"tradingcore/src/signal"
)

type botStore interface {
	Create(ctx context.Context, bot *model.Bot) error
	FindByID(ctx context.Context, id uint) (*model.Bot, error)
	List(ctx context.Context) ([]model.Bot, error)
}

type botRunner interface {
	Start(ctx context.Context, cfg executors.BotConfig) error
	Stop(ctx context.Context, botID uint) error
	Status(botID uint) (executors.BotStatus, bool)
	Running() []executors.BotStatus
}

type tradeReader interface {
	FindByBot(ctx context.Context, botID uint, limit int) ([]model.TradeRecord, error)
}

type statisticsReader interface {
	Statistics(ctx context.Context, botID uint) (ledger.TradeStatistics, error)
}

// CreateBotRequest creates a bot. Parameters and risk settings default to the strategy template.
type CreateBotRequest struct {
	Name            string                    `json:"name" validate:"required,max=100"`
	Venue           string                    `json:"venue" validate:"required,max=50"`
	Symbol          string                    `json:"symbol" validate:"required,max=50"`
	Strategy        model.StrategyKind        `json:"strategy" validate:"required,oneof=RSI_SMA_MACD BOLLINGER_BANDS HYBRID"`
	Interval        string                    `json:"interval" validate:"omitempty,oneof=1m 5m 15m 30m 1h 4h 1d"`
	MinConfidence   float64                   `json:"min_confidence" validate:"gte=0,lte=1"`
	CooldownSeconds int                       `json:"cooldown_seconds" validate:"gte=0"`
	Description     string                    `json:"description"`
	Parameters      *model.StrategyParameters `json:"parameters"`
	RiskManagement  *model.RiskSettings       `json:"risk_management"`
}

func (req CreateBotRequest) toModel() model.Bot {
	tpl := model.BotTemplates()[req.Strategy]

	bot := model.Bot{
		Name:            strings.TrimSpace(req.Name),
		Venue:           strings.ToLower(strings.TrimSpace(req.Venue)),
		Symbol:          strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Strategy:        req.Strategy,
		Interval:        req.Interval,
		MinConfidence:   req.MinConfidence,
		CooldownSeconds: req.CooldownSeconds,
		Description:     req.Description,
		Parameters:      tpl.Parameters,
		RiskManagement:  tpl.RiskManagement,
	}
	if bot.Interval == "" {
		bot.Interval = tpl.Interval
	}
	if req.Parameters != nil {
		bot.Parameters = *req.Parameters
	}
	if req.RiskManagement != nil {
		bot.RiskManagement = *req.RiskManagement
	}
	return bot
}

func parseBotID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return 0, false
	}
	return uint(id), true
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 1000 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return limit, true
}

// TemplatesHandler lists the strategy presets.
func TemplatesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, model.BotTemplates())
	}
}

func ListBotsHandler(store botStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bots, err := store.List(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to list bots")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		WriteJSON(w, http.StatusOK, bots)
	}
}

// CreateBotHandler validates and stores a new, inactive bot.
func CreateBotHandler(store botStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBotRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		bot := req.toModel()
		if err := validate.StructCtx(r.Context(), bot.RiskManagement); err != nil {
			WriteJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": validationErrors(err)})
			return
		}
		if _, err := signal.New(bot.Strategy, bot.Parameters); err != nil {
			WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
				"errors": []ValidationError{{Code: "ERR_PARAMETERS", Field: "parameters", Message: err.Error()}},
			})
			return
		}

		if err := store.Create(r.Context(), &bot); err != nil {
			logger.WithError(err).Error("failed to create bot")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		WriteJSON(w, http.StatusCreated, bot)
	}
}

// RunningBotsHandler lists the bots with a live loop in this process.
func RunningBotsHandler(runner botRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, runner.Running())
	}
}

type botDetail struct {
	Bot     *model.Bot           `json:"bot"`
	Running bool                 `json:"running"`
	Status  *executors.BotStatus `json:"status,omitempty"`
}

func GetBotHandler(store botStore, runner botRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseBotID(w, r)
		if !ok {
			return
		}

		bot, err := store.FindByID(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("bot_id", id).Error("failed to load bot")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if bot == nil {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}

		detail := botDetail{Bot: bot}
		if st, running := runner.Status(id); running {
			detail.Running = true
			detail.Status = &st
		}
		WriteJSON(w, http.StatusOK, detail)
	}
}

// StartBotHandler loads the stored bot and launches its loop.
func StartBotHandler(store botStore, runner botRunner, cfg executors.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseBotID(w, r)
		if !ok {
			return
		}

		bot, err := store.FindByID(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("bot_id", id).Error("failed to load bot")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if bot == nil {
			writeError(w, http.StatusNotFound, "bot not found")
			return
		}
		if err := validate.StructCtx(r.Context(), bot.RiskManagement); err != nil {
			WriteJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": validationErrors(err)})
			return
		}

		if err := runner.Start(r.Context(), executors.BotConfigFromModel(bot, cfg)); err != nil {
			if errors.Is(err, errs.ErrBotAlreadyRunning) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			logger.WithError(err).WithField("bot_id", id).Warn("bot start rejected")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		st, _ := runner.Status(id)
		WriteJSON(w, http.StatusAccepted, st)
	}
}

func StopBotHandler(runner botRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseBotID(w, r)
		if !ok {
			return
		}

		if err := runner.Stop(r.Context(), id); err != nil {
			if errors.Is(err, errs.ErrBotNotRunning) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			logger.WithError(err).WithField("bot_id", id).Error("bot stop finished with errors")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// BotTradesHandler lists the bot's ledger rows, newest first.
func BotTradesHandler(trades tradeReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseBotID(w, r)
		if !ok {
			return
		}
		limit, ok := parseLimit(w, r, 100)
		if !ok {
			return
		}

		list, err := trades.FindByBot(r.Context(), id, limit)
		if err != nil {
			logger.WithError(err).WithField("bot_id", id).Error("failed to list trades")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		WriteJSON(w, http.StatusOK, list)
	}
}

func BotStatisticsHandler(stats statisticsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseBotID(w, r)
		if !ok {
			return
		}

		out, err := stats.Statistics(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("bot_id", id).Error("failed to compute statistics")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		WriteJSON(w, http.StatusOK, out)
	}
}
