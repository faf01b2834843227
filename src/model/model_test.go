package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBotTemplates(t *testing.T) {
	templates := BotTemplates()
	require.Len(t, templates, 3)

	for kind, tpl := range templates {
		if tpl.Strategy != kind {
			t.Fatalf("template %s keyed under %s", tpl.Strategy, kind)
		}
		r := tpl.RiskManagement
		if r.RiskPercentage <= 0 || r.RiskPercentage > r.MaxRiskPerTrade {
			t.Fatalf("%s: risk %v must be positive and within max %v", kind, r.RiskPercentage, r.MaxRiskPerTrade)
		}
	}

	hybrid := templates[StrategyHybrid].Parameters
	require.Equal(t, 20, hybrid.Bollinger.Period)
	require.Equal(t, 200, hybrid.SMA.LongPeriod)
	require.Zero(t, templates[StrategyBollingerBands].Parameters.RSI.Period)

	// callers may modify the returned map freely
	templates[StrategyHybrid] = BotTemplate{}
	require.Equal(t, StrategyHybrid, BotTemplates()[StrategyHybrid].Strategy)
}

func TestJSONColumns(t *testing.T) {
	in := StrategyParameters{Bollinger: BollingerParams{Period: 10, StandardDev: 1.5}}
	v, err := in.Value()
	require.NoError(t, err)

	var fromString StrategyParameters
	require.NoError(t, fromString.Scan(v))
	require.Equal(t, in, fromString)

	var fromBytes StrategyParameters
	require.NoError(t, fromBytes.Scan([]byte(v.(string))))
	require.Equal(t, in, fromBytes)

	var empty RiskSettings
	require.NoError(t, empty.Scan(nil))
	require.NoError(t, empty.Scan(""))
	require.Equal(t, RiskSettings{}, empty)

	var snap PerformanceSnapshot
	require.Error(t, snap.Scan(42))
}

func TestOHLCVBaseRows(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 42, 31, 0, time.UTC)
	base := NewOHLCVBaseFromCandle("BTC_USDT", Candle{Timestamp: at, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10})

	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), base.ToHourRow().Datetime)
	require.Equal(t, time.Date(2024, 1, 1, 10, 42, 0, 0, time.UTC), base.ToMinuteRow().Datetime)
	require.Equal(t, "BTC_USDT", base.ToMinuteRow().Symbol)

	c := base.ToHourRow().ToCandle()
	require.Equal(t, 1.5, c.Close)
	require.Equal(t, 10.0, c.Volume)
}

func TestCloses(t *testing.T) {
	require.Equal(t, []float64{1, 2}, Closes([]Candle{{Close: 1}, {Close: 2}}))
}
