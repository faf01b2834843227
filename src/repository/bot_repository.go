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

// BotRepository persists bot configurations and their performance snapshots.
type BotRepository struct {
	db *gorm.DB
}

func NewBotRepository() *BotRepository {
	logger.WithField("component", "BotRepository").
		Info("Creating new BotRepository with MainDB")

	return &BotRepository{
		db: database.MainDB,
	}
}

func (r *BotRepository) WithDB(db *gorm.DB) *BotRepository {
	return &BotRepository{db: db}
}

func (r *BotRepository) Create(
	ctx context.Context,
	bot *model.Bot,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "BotRepository",
		"op":       "Create",
		"name":     bot.Name,
		"symbol":   bot.Symbol,
		"strategy": bot.Strategy,
	}).Debug("Creating new bot")

	if err := r.db.WithContext(ctx).Create(bot).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "BotRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create bot")

		return err
	}

	return nil
}

// FindByID returns (nil, nil) if the bot is not found.
func (r *BotRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.Bot, error) {

	var bot model.Bot

	err := r.db.WithContext(ctx).First(&bot, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "BotRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Bot not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "BotRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch bot by ID")

		return nil, err
	}

	return &bot, nil
}

// FindActive lists bots flagged active, used to restore loops on startup and by the reconcile worker.
func (r *BotRepository) FindActive(ctx context.Context) ([]model.Bot, error) {
	var bots []model.Bot

	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&bots).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "BotRepository",
			"op":   "FindActive",
		}).WithError(err).Error("Failed to fetch active bots")

		return nil, err
	}

	return bots, nil
}

func (r *BotRepository) List(ctx context.Context) ([]model.Bot, error) {
	var bots []model.Bot
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&bots).Error; err != nil {
		return nil, err
	}
	return bots, nil
}

func (r *BotRepository) SetActive(
	ctx context.Context,
	id uint,
	active bool,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "BotRepository",
		"op":     "SetActive",
		"id":     id,
		"active": active,
	}).Info("Updating bot active flag")

	return r.db.WithContext(ctx).
		Model(&model.Bot{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

func (r *BotRepository) UpdateLastTradeAt(
	ctx context.Context,
	id uint,
	at time.Time,
) error {
	return r.db.WithContext(ctx).
		Model(&model.Bot{}).
		Where("id = ?", id).
		Update("last_trade_at", at).Error
}

// UpdatePerformance stores a snapshot recomputed from the ledger.
func (r *BotRepository) UpdatePerformance(
	ctx context.Context,
	id uint,
	perf model.PerformanceSnapshot,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.Bot{}).
		Where("id = ?", id).
		Update("performance", perf).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "BotRepository",
			"op":   "UpdatePerformance",
			"id":   id,
		}).WithError(err).Error("Failed to update bot performance")

		return err
	}

	return nil
}
