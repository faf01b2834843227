package handler

import (
	"context"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"tradingcore/src/model"
)

type alertReader interface {
	FindRecent(ctx context.Context, level string, limit int) ([]model.Exception, error)
}

// AlertsHandler lists the newest persisted alerts. ?level=critical narrows the list.
func AlertsHandler(alerts alertReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := r.URL.Query().Get("level")
		switch level {
		case "", model.ExceptionLevelError, model.ExceptionLevelCritical:
		default:
			writeError(w, http.StatusBadRequest, "invalid level")
			return
		}

		limit, ok := parseLimit(w, r, 50)
		if !ok {
			return
		}

		list, err := alerts.FindRecent(r.Context(), level, limit)
		if err != nil {
			logger.WithError(err).WithField("level", level).Error("failed to list alerts")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		WriteJSON(w, http.StatusOK, list)
	}
}
