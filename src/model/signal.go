package model

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal is the output of one strategy evaluation. It is never mutated after creation.
type Signal struct {
	Action         Action             `json:"action"`
	Confidence     float64            `json:"confidence"`
	Indicators     map[string]float64 `json:"indicators,omitempty"`
	ReferencePrice float64            `json:"reference_price"`
}

// HoldSignal returns a neutral signal with zero confidence.
func HoldSignal(price float64) Signal {
	return Signal{
		Action:         ActionHold,
		Confidence:     0,
		Indicators:     map[string]float64{},
		ReferencePrice: price,
	}
}

// Signed returns +confidence for buy, -confidence for sell and 0 for hold.
func (s Signal) Signed() float64 {
	switch s.Action {
	case ActionBuy:
		return s.Confidence
	case ActionSell:
		return -s.Confidence
	default:
		return 0
	}
}
