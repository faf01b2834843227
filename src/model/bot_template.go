package model

// BotTemplate is a named preset a new bot can start from.
type BotTemplate struct {
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Strategy       StrategyKind       `json:"strategy"`
	Interval       string             `json:"interval"`
	Parameters     StrategyParameters `json:"parameters"`
	RiskManagement RiskSettings       `json:"risk_management"`
}

func defaultTrendParameters() StrategyParameters {
	return StrategyParameters{
		RSI:  RSIParams{Period: 14, Overbought: 70, Oversold: 30},
		SMA:  SMAParams{ShortPeriod: 20, LongPeriod: 200},
		MACD: MACDParams{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
	}
}

func defaultBollingerParameters() BollingerParams {
	return BollingerParams{Period: 20, StandardDev: 2}
}

// BotTemplates returns the built-in presets keyed by strategy.
func BotTemplates() map[StrategyKind]BotTemplate {
	hybrid := defaultTrendParameters()
	hybrid.Bollinger = defaultBollingerParameters()

	return map[StrategyKind]BotTemplate{
		StrategyTrendConfluence: {
			Name:        "RSI + SMA + MACD",
			Description: "Trend following with momentum confirmation",
			Strategy:    StrategyTrendConfluence,
			Interval:    "1h",
			Parameters:  defaultTrendParameters(),
			RiskManagement: RiskSettings{
				RiskPercentage:  1,
				RiskRewardRatio: 2,
				MaxPositionSize: 10000,
				MaxRiskPerTrade: 2,
			},
		},
		StrategyBollingerBands: {
			Name:        "Bollinger Bands",
			Description: "Mean reversion on band extremes",
			Strategy:    StrategyBollingerBands,
			Interval:    "1h",
			Parameters:  StrategyParameters{Bollinger: defaultBollingerParameters()},
			RiskManagement: RiskSettings{
				RiskPercentage:  1,
				RiskRewardRatio: 1.5,
				MaxPositionSize: 5000,
				MaxRiskPerTrade: 1.5,
			},
		},
		StrategyHybrid: {
			Name:        "Hybrid",
			Description: "Weighted blend of trend confluence and Bollinger mean reversion",
			Strategy:    StrategyHybrid,
			Interval:    "4h",
			Parameters:  hybrid,
			RiskManagement: RiskSettings{
				RiskPercentage:  0.5,
				RiskRewardRatio: 3,
				MaxPositionSize: 8000,
				MaxRiskPerTrade: 1,
			},
		},
	}
}
