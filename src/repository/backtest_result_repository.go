package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingcore/src/database"
	"tradingcore/src/model"
)

// BacktestResultRepository stores simulator reports.
type BacktestResultRepository struct {
	db *gorm.DB
}

func NewBacktestResultRepository() *BacktestResultRepository {
	return &BacktestResultRepository{
		db: database.MainDB,
	}
}

func (r *BacktestResultRepository) WithDB(db *gorm.DB) *BacktestResultRepository {
	return &BacktestResultRepository{db: db}
}

func (r *BacktestResultRepository) Create(
	ctx context.Context,
	result *model.BacktestResult,
) error {

	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "BacktestResultRepository",
			"op":     "Create",
			"symbol": result.Symbol,
		}).WithError(err).Error("Failed to store backtest result")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":         "BacktestResultRepository",
		"op":           "Create",
		"id":           result.ID,
		"total_return": result.TotalReturn,
		"total_trades": result.TotalTrades,
	}).Info("Backtest result stored")

	return nil
}

// FindByID returns (nil, nil) if the result is not found.
func (r *BacktestResultRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.BacktestResult, error) {

	var result model.BacktestResult
	err := r.db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// FindByBot lists a bot's backtests, newest first.
func (r *BacktestResultRepository) FindByBot(
	ctx context.Context,
	botID uint,
	limit int,
) ([]model.BacktestResult, error) {

	if limit <= 0 {
		limit = 20
	}

	var results []model.BacktestResult
	err := r.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
