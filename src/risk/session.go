package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session is a New York based trading session label used to scale position size.
type Session string

const (
	SessionWeekendHoliday Session = "weekend_holiday"
	SessionDeadZone       Session = "dead_zone"
	SessionAsia           Session = "asia_session"
	SessionLondon         Session = "london_session"
	SessionUS             Session = "us_session"
	SessionDefault        Session = "default"
	SessionNoTrade        Session = "no_trade"
)

// SessionSizer scales a computed position size by the session it is placed in.
// With NoTradeWindow enabled, orders from Friday 09:00 NY until Sunday 03:00 NY and on
// US market holidays are sized to zero.
type SessionSizer struct {
	Multipliers   map[Session]decimal.Decimal
	NoTradeWindow bool
	loc           *time.Location
}

func DefaultSessionSizer() *SessionSizer {
	return &SessionSizer{
		Multipliers: map[Session]decimal.Decimal{
			SessionWeekendHoliday: decimal.NewFromFloat(0.15),
			SessionDeadZone:       decimal.NewFromFloat(0.15),
			SessionAsia:           decimal.NewFromFloat(0.75),
			SessionLondon:         decimal.NewFromFloat(1.0),
			SessionUS:             decimal.NewFromFloat(1.25),
			SessionDefault:        decimal.NewFromFloat(0.15),
		},
		NoTradeWindow: true,
	}
}

func (s *SessionSizer) location() *time.Location {
	if s.loc != nil {
		return s.loc
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	s.loc = loc
	return loc
}

// Scale returns the session adjusted size and the detected session.
func (s *SessionSizer) Scale(size decimal.Decimal, now time.Time) (decimal.Decimal, Session) {
	if !size.IsPositive() {
		return decimal.Zero, SessionDefault
	}

	et := now.In(s.location())
	if s.NoTradeWindow && inNoTradeWindow(et) {
		return decimal.Zero, SessionNoTrade
	}

	sess := sessionAt(et)
	mult, ok := s.Multipliers[sess]
	if !ok {
		mult = s.Multipliers[SessionDefault]
	}
	return size.Mul(mult), sess
}

func inNoTradeWindow(t time.Time) bool {
	if isUSHoliday(t) {
		// the London open on a holiday Sunday stays tradable
		return !(t.Weekday() == time.Sunday && t.Hour() >= 3 && t.Hour() < 9)
	}

	switch t.Weekday() {
	case time.Friday:
		return t.Hour() >= 9
	case time.Saturday:
		return true
	case time.Sunday:
		return t.Hour() < 3
	}
	return false
}

func sessionAt(t time.Time) Session {
	h := t.Hour()
	london := h >= 3 && h < 9

	if t.Weekday() == time.Sunday && london {
		return SessionLondon
	}
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday || isUSHoliday(t) {
		return SessionWeekendHoliday
	}

	switch {
	case h >= 17 && h < 20:
		return SessionDeadZone
	case h >= 20 || h < 3:
		return SessionAsia
	case london:
		return SessionLondon
	case h >= 9 && h < 17:
		return SessionUS
	}
	return SessionDefault
}

func isUSHoliday(t time.Time) bool {
	day := t.Format(time.DateOnly)
	for _, h := range usHolidays(t.Year()) {
		if h.Format(time.DateOnly) == day {
			return true
		}
	}
	return false
}

func usHolidays(year int) []time.Time {
	return []time.Time{
		observed(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)),
		nthWeekday(year, time.January, time.Monday, 3),
		nthWeekday(year, time.February, time.Monday, 3),
		lastWeekday(year, time.May, time.Monday),
		observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)),
		nthWeekday(year, time.September, time.Monday, 1),
		nthWeekday(year, time.November, time.Thursday, 4),
		observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)),
	}
}

// observed moves a Sunday holiday to the following Monday.
func observed(d time.Time) time.Time {
	if d.Weekday() == time.Sunday {
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
