package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingcore/src/database"
	"tradingcore/src/model"
)

// TradeRepository handles read/write operations for the trade ledger.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main read/write database.
func NewTradeRepository() *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Info("Creating new TradeRepository with MainDB")

	return &TradeRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create inserts a new trade. The given record is updated with the generated ID and timestamps.
func (r *TradeRepository) Create(
	ctx context.Context,
	trade *model.TradeRecord,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":              "TradeRepository",
		"op":                "Create",
		"bot_id":            trade.BotID,
		"symbol":            trade.Symbol,
		"side":              trade.Side,
		"status":            trade.Status,
		"exchange_order_id": trade.ExchangeOrderID,
	}).Debug("Creating new trade")

	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create trade")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Create",
		"trade_id": trade.ID,
	}).Info("Trade created successfully")

	return nil
}

// FindByID fetches a single trade by its primary ID.
// Returns (nil, nil) if the trade is not found.
func (r *TradeRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.TradeRecord, error) {

	var trade model.TradeRecord

	err := r.db.WithContext(ctx).First(&trade, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "TradeRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Trade not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch trade by ID")

		return nil, err
	}

	return &trade, nil
}

// FindByExchangeOrderID fetches a trade by the venue order id.
// Returns (nil, nil) if the trade is not found.
func (r *TradeRepository) FindByExchangeOrderID(
	ctx context.Context,
	exchangeOrderID string,
) (*model.TradeRecord, error) {

	var trade model.TradeRecord

	err := r.db.WithContext(ctx).
		Where("exchange_order_id = ?", exchangeOrderID).
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":              "TradeRepository",
			"op":                "FindByExchangeOrderID",
			"exchange_order_id": exchangeOrderID,
		}).WithError(err).Error("Failed to fetch trade by exchange order ID")

		return nil, err
	}

	return &trade, nil
}

// FindReconcilable returns the bot's trades still pending, open or partially filled, oldest first.
func (r *TradeRepository) FindReconcilable(
	ctx context.Context,
	botID uint,
) ([]model.TradeRecord, error) {

	var trades []model.TradeRecord

	err := r.db.WithContext(ctx).
		Where("bot_id = ? AND status IN ?", botID, model.ReconcilableStatuses).
		Order("id ASC").
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "FindReconcilable",
			"bot_id": botID,
		}).WithError(err).Error("Failed to fetch reconcilable trades")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "TradeRepository",
		"op":          "FindReconcilable",
		"bot_id":      botID,
		"rows_return": len(trades),
	}).Debug("Reconcilable trades fetched")

	return trades, nil
}

// FindNextOpposite returns the earliest filled trade on the opposite side for the same bot and
// symbol created after the entry that has not settled another entry yet.
// Returns (nil, nil) when there is none.
func (r *TradeRepository) FindNextOpposite(
	ctx context.Context,
	entry *model.TradeRecord,
) (*model.TradeRecord, error) {

	var exit model.TradeRecord

	err := r.db.WithContext(ctx).
		Where("bot_id = ? AND symbol = ? AND side = ? AND status = ? AND created_at > ? AND profit_loss IS NULL",
			entry.BotID, entry.Symbol, model.OppositeSide(entry.Side), model.TradeStatusFilled, entry.CreatedAt).
		Order("created_at ASC").
		First(&exit).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "FindNextOpposite",
			"trade_id": entry.ID,
		}).WithError(err).Error("Failed to fetch exit trade")

		return nil, err
	}

	return &exit, nil
}

// FindByBot returns the bot's trades ordered from newest to oldest.
func (r *TradeRepository) FindByBot(
	ctx context.Context,
	botID uint,
	limit int,
) ([]model.TradeRecord, error) {

	if limit <= 0 {
		limit = 100
	}

	var trades []model.TradeRecord

	err := r.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "FindByBot",
			"bot_id": botID,
		}).WithError(err).Error("Failed to fetch trades by bot")

		return nil, err
	}

	return trades, nil
}

// FindHistory returns every trade of the bot, oldest first.
func (r *TradeRepository) FindHistory(
	ctx context.Context,
	botID uint,
) ([]model.TradeRecord, error) {

	var trades []model.TradeRecord

	err := r.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at ASC, id ASC").
		Find(&trades).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "FindHistory",
			"bot_id": botID,
		}).WithError(err).Error("Failed to fetch trade history")

		return nil, err
	}

	return trades, nil
}

// CountByBot returns how many trades the bot has in the ledger.
func (r *TradeRepository) CountByBot(
	ctx context.Context,
	botID uint,
) (int64, error) {

	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Where("bot_id = ?", botID).
		Count(&count).Error
	return count, err
}

// UpdateFields applies a partial update to one trade.
func (r *TradeRepository) UpdateFields(
	ctx context.Context,
	id uint,
	fields map[string]interface{},
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "UpdateFields",
		"id":     id,
		"fields": len(fields),
	}).Debug("Updating trade")

	err := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Where("id = ?", id).
		Updates(fields).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "UpdateFields",
			"id":   id,
		}).WithError(err).Error("Failed to update trade")

		return err
	}

	return nil
}

// Transaction runs fn with a repository bound to a single database transaction.
func (r *TradeRepository) Transaction(
	ctx context.Context,
	fn func(tx *TradeRepository) error,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithDB(tx))
	})
}

// CancelOpen marks every non-terminal trade of the bot as cancelled and returns the affected rows.
func (r *TradeRepository) CancelOpen(
	ctx context.Context,
	botID uint,
	note string,
	at time.Time,
) ([]model.TradeRecord, error) {

	var trades []model.TradeRecord

	err := r.Transaction(ctx, func(tx *TradeRepository) error {
		if err := tx.db.
			Where("bot_id = ? AND status IN ?", botID, model.ReconcilableStatuses).
			Find(&trades).Error; err != nil {
			return err
		}
		for i := range trades {
			trades[i].Status = model.TradeStatusCancelled
			trades[i].ClosedAt = &at
			trades[i].Notes = appendNote(trades[i].Notes, note)
			if err := tx.db.Model(&model.TradeRecord{}).
				Where("id = ?", trades[i].ID).
				Updates(map[string]interface{}{
					"status":    trades[i].Status,
					"closed_at": at,
					"notes":     trades[i].Notes,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "CancelOpen",
			"bot_id": botID,
		}).WithError(err).Error("Failed to cancel open trades")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "TradeRepository",
		"op":        "CancelOpen",
		"bot_id":    botID,
		"cancelled": len(trades),
	}).Info("Open trades cancelled")

	return trades, nil
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "; " + note
}
