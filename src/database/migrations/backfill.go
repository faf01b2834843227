package migrations

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// backfillBotThresholds fills bots created before the confidence and cooldown columns existed.
func backfillBotThresholds(db *gorm.DB) error {
	steps := []struct {
		column string
		where  string
		value  interface{}
	}{
		{"min_confidence", "min_confidence IS NULL OR min_confidence <= 0", 0.7},
		{"cooldown_seconds", "cooldown_seconds IS NULL OR cooldown_seconds <= 0", 300},
		{"interval", `"interval" IS NULL OR "interval" = ''`, "1h"},
	}

	for _, s := range steps {
		res := db.Table("bots").Where(s.where).Update(s.column, s.value)
		if res.Error != nil {
			return fmt.Errorf("backfill bots.%s: %w", s.column, res.Error)
		}
		logrus.WithFields(map[string]interface{}{
			"column": s.column,
			"rows":   res.RowsAffected,
		}).Info("[migrations] bots backfilled")
	}
	return nil
}

// backfillTradeVenue copies the owning bot's venue onto trades recorded without one.
func backfillTradeVenue(db *gorm.DB) error {
	res := db.Exec(`
		UPDATE trades
		SET venue = (SELECT bots.venue FROM bots WHERE bots.id = trades.bot_id)
		WHERE (venue IS NULL OR venue = '')
		  AND EXISTS (SELECT 1 FROM bots WHERE bots.id = trades.bot_id)
	`)
	if res.Error != nil {
		return fmt.Errorf("backfill trades.venue: %w", res.Error)
	}
	logrus.WithField("rows", res.RowsAffected).Info("[migrations] trade venues backfilled")
	return nil
}
