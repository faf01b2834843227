package connectors

import "fmt"

type venueErrorCode struct {
	Name      string
	Transient bool
}

// VenueErrorCodes maps REST venue business error codes to names. Transient codes are
// surfaced as retryable errors, every other code is an order rejection.
var VenueErrorCodes = map[int]venueErrorCode{
	10001: {Name: "UNKNOWN_ERROR", Transient: true},
	10002: {Name: "INVALID_ARGUMENT"},
	10003: {Name: "UNAUTHORIZED"},
	10005: {Name: "MAINTENANCE_MODE", Transient: true},
	10006: {Name: "RATE_LIMITED", Transient: true},
	10007: {Name: "OVERLOADED", Transient: true},
	11012: {Name: "INVALID_QTY"},
	11013: {Name: "INVALID_PRICE"},
	11015: {Name: "PRICE_TOO_SMALL"}, // below tick size
	11016: {Name: "PRICE_TOO_LARGE"},
	11017: {Name: "QTY_TOO_SMALL"}, // below lot size
	11018: {Name: "QTY_TOO_LARGE"},
	11019: {Name: "VALUE_TOO_SMALL"}, // price x qty below min notional
	11022: {Name: "STOP_PRICE_INVALID"},
	11051: {Name: "INSUFFICIENT_BALANCE"},
	11062: {Name: "ORDER_NOT_FOUND"},
	11063: {Name: "TPSL_TOO_SMALL"},
	11064: {Name: "TPSL_TOO_LARGE"},
	11070: {Name: "MARKET_CLOSED"},
	11081: {Name: "CLIENT_ID_EXIST"},
	11100: {Name: "TOO_MANY_ORDERS"},
	11120: {Name: "SYMBOL_NOT_FOUND"},
}

// GetErrorMsg returns a readable name for a venue error code.
func GetErrorMsg(code int) string {
	if c, ok := VenueErrorCodes[code]; ok {
		return c.Name
	}
	return fmt.Sprintf("UNKNOWN_VENUE_ERROR_%d", code)
}

func isTransientCode(code int) bool {
	return VenueErrorCodes[code].Transient
}
