package signal

import "math"

// SMA returns the simple moving average series. Element i covers values[i : i+period].
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	out := make([]float64, 0, len(values)-period+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// RSI uses Wilder smoothing. The first value needs period+1 closes.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nil
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	out := make([]float64, 0, len(values)-period)
	out = append(out, rsiFrom(avgGain, avgLoss))

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out = append(out, rsiFrom(avgGain, avgLoss))
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

type MACDPoint struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD is built on simple moving averages for both the oscillator and the signal line.
// The fast and slow averages are aligned on the last bar.
func MACD(values []float64, fast, slow, signalPeriod int) []MACDPoint {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 || fast >= slow {
		return nil
	}

	fastMA := SMA(values, fast)
	slowMA := SMA(values, slow)
	if len(slowMA) == 0 {
		return nil
	}

	offset := len(fastMA) - len(slowMA)
	line := make([]float64, len(slowMA))
	for i := range slowMA {
		line[i] = fastMA[i+offset] - slowMA[i]
	}

	sig := SMA(line, signalPeriod)
	if len(sig) == 0 {
		return nil
	}

	offset = len(line) - len(sig)
	out := make([]MACDPoint, len(sig))
	for i := range sig {
		m := line[i+offset]
		out[i] = MACDPoint{MACD: m, Signal: sig[i], Histogram: m - sig[i]}
	}
	return out
}

type Band struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// BollingerBands uses the population standard deviation over each window.
func BollingerBands(values []float64, period int, stdDev float64) []Band {
	if period <= 0 || len(values) < period {
		return nil
	}

	middles := SMA(values, period)
	out := make([]Band, len(middles))
	for i, mid := range middles {
		window := values[i : i+period]
		variance := 0.0
		for _, v := range window {
			d := v - mid
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		out[i] = Band{Upper: mid + stdDev*sd, Middle: mid, Lower: mid - stdDev*sd}
	}
	return out
}
