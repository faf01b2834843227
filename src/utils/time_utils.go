package utils

import (
	"time"

	logger "github.com/sirupsen/logrus"
)

// ResetTime truncates t to the start of its minute or hour.
// Any other granularity returns t unchanged.
func ResetTime(t time.Time, granularity string) time.Time {
	switch granularity {
	case "minute":
		return t.Truncate(time.Minute)
	case "hour":
		return t.Truncate(time.Hour)
	default:
		logger.WithField("granularity", granularity).Warn("Invalid granularity, use minute or hour")
		return t
	}
}
