// Package indicator содержит чистые расчеты технических индикаторов
// по серии свечей: EMA, MACD, RSI (Wilder), ATR, ADX, полосы Боллинджера,
// относительный объем и дивергенции RSI.
//
// Пакет не ходит в сеть и не пишет в БД: вход - свечи, выход - серия
// models.CryptoMarketMetrics. Строки прогрева (где длинные индикаторы
// еще не устоялись) отбрасываются.
package indicator

import (
	"fmt"
	"math"

	"stopguard/internal/models"
	"stopguard/pkg/utils"
)

// Config - периоды расчета индикаторов
type Config struct {
	EMAShortPeriod int
	EMAMidPeriod   int
	EMALongPeriod  int

	MACDFastPeriod   int
	MACDSlowPeriod   int
	MACDSignalPeriod int

	RSIPeriod int
	ATRPeriod int
	ADXPeriod int

	BBPeriod int
	BBStdDev float64

	VolumePeriod int

	// Окно поиска локальных экстремумов для дивергенций
	DivergenceLookback int
}

// DefaultConfig возвращает стандартные периоды
func DefaultConfig() Config {
	return Config{
		EMAShortPeriod:     9,
		EMAMidPeriod:       21,
		EMALongPeriod:      200,
		MACDFastPeriod:     12,
		MACDSlowPeriod:     26,
		MACDSignalPeriod:   9,
		RSIPeriod:          14,
		ATRPeriod:          14,
		ADXPeriod:          14,
		BBPeriod:           20,
		BBStdDev:           2.0,
		VolumePeriod:       20,
		DivergenceLookback: 14,
	}
}

// WithEMAPeriods возвращает копию конфига с периодами EMA из настроек символа.
// Нулевые периоды игнорируются.
func (c Config) WithEMAPeriods(short, mid, long int) Config {
	if short > 0 {
		c.EMAShortPeriod = short
	}
	if mid > 0 {
		c.EMAMidPeriod = mid
	}
	if long > 0 {
		c.EMALongPeriod = long
	}
	return c
}

// warmup - число начальных строк, отбрасываемых как непрогретые
func (c Config) warmup() int {
	w := c.EMALongPeriod
	if m := c.MACDSlowPeriod + c.MACDSignalPeriod; m > w {
		w = m
	}
	if 2*c.ADXPeriod > w {
		w = 2 * c.ADXPeriod
	}
	if c.BBPeriod > w {
		w = c.BBPeriod
	}
	if c.VolumePeriod > w {
		w = c.VolumePeriod
	}
	return w
}

// Calculate вычисляет серию метрик по свечам (от старых к новым).
// Последняя строка результата соответствует текущей (незакрытой) свече.
func Calculate(symbol, timeframe string, candles []models.Candle, cfg Config) ([]models.CryptoMarketMetrics, error) {
	warmup := cfg.warmup()
	if len(candles) <= warmup {
		return nil, fmt.Errorf("not enough candles for %s %s: %d, need more than %d",
			symbol, timeframe, len(candles), warmup)
	}

	n := len(candles)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	emaShort := emaSeries(closes, cfg.EMAShortPeriod)
	emaMid := emaSeries(closes, cfg.EMAMidPeriod)
	emaLong := emaSeries(closes, cfg.EMALongPeriod)

	macdLine, macdSignal := macdSeries(closes, cfg.MACDFastPeriod, cfg.MACDSlowPeriod, cfg.MACDSignalPeriod)
	rsi := rsiSeries(closes, cfg.RSIPeriod)
	atr := atrSeries(candles, cfg.ATRPeriod)
	adx, plusDI, minusDI := adxSeries(candles, cfg.ADXPeriod)
	bbUpper, bbMiddle, bbLower := bollingerSeries(closes, cfg.BBPeriod, cfg.BBStdDev)
	relVolume := relativeVolumeSeries(volumes, cfg.VolumePeriod)

	metrics := make([]models.CryptoMarketMetrics, 0, n-warmup)
	for i := warmup; i < n; i++ {
		m := models.CryptoMarketMetrics{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: candles[i].Timestamp,

			Open:  candles[i].Open,
			High:  candles[i].High,
			Low:   candles[i].Low,
			Close: candles[i].Close,

			EMAShort: emaShort[i],
			EMAMid:   emaMid[i],
			EMALong:  emaLong[i],

			MACDLine:   macdLine[i],
			MACDSignal: macdSignal[i],
			MACDHist:   macdLine[i] - macdSignal[i],

			RSI: rsi[i],

			ATR: atr[i],

			ADX:     adx[i],
			PlusDI:  plusDI[i],
			MinusDI: minusDI[i],

			BBUpper:  bbUpper[i],
			BBMiddle: bbMiddle[i],
			BBLower:  bbLower[i],

			RelativeVolume: relVolume[i],
		}
		if candles[i].Close > 0 {
			m.ATRPercent = atr[i] / candles[i].Close * 100
		}
		m.BearishDivergence = bearishDivergenceAt(closes, rsi, i, cfg.DivergenceLookback)
		m.BullishDivergence = bullishDivergenceAt(closes, rsi, i, cfg.DivergenceLookback)

		metrics = append(metrics, m)
	}

	return metrics, nil
}

// Confirmed возвращает последнюю подтвержденную (закрытую) свечу серии.
// Последняя строка - текущая незакрытая, решения по ней не принимаются.
func Confirmed(metrics []models.CryptoMarketMetrics) (*models.CryptoMarketMetrics, error) {
	if len(metrics) < 2 {
		return nil, fmt.Errorf("metrics series too short: %d", len(metrics))
	}
	return &metrics[len(metrics)-2], nil
}

// Current возвращает метрики текущей (незакрытой) свечи
func Current(metrics []models.CryptoMarketMetrics) (*models.CryptoMarketMetrics, error) {
	if len(metrics) == 0 {
		return nil, fmt.Errorf("empty metrics series")
	}
	return &metrics[len(metrics)-1], nil
}

// ============================================================
// Серии индикаторов
// ============================================================

// emaSeries - экспоненциальное скользящее среднее, затравка SMA
func emaSeries(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if len(values) == 0 || period <= 0 {
		return result
	}
	if period > len(values) {
		period = len(values)
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
		result[i] = sum / float64(i+1)
	}

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		result[i] = values[i]*k + result[i-1]*(1-k)
	}
	return result
}

func macdSeries(closes []float64, fast, slow, signal int) (line, signalLine []float64) {
	emaFast := emaSeries(closes, fast)
	emaSlow := emaSeries(closes, slow)

	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}
	signalLine = emaSeries(line, signal)
	return line, signalLine
}

// rsiSeries - RSI по Уайлдеру (сглаженные средние прироста/падения)
func rsiSeries(closes []float64, period int) []float64 {
	result := make([]float64, len(closes))
	if len(closes) <= period {
		return result
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	result[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		result[i] = rsiValue(avgGain, avgLoss)
	}
	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func trueRange(current, previous models.Candle) float64 {
	tr := current.High - current.Low
	tr = utils.Max(tr, utils.Abs(current.High-previous.Close))
	tr = utils.Max(tr, utils.Abs(current.Low-previous.Close))
	return tr
}

// atrSeries - ATR со сглаживанием Уайлдера
func atrSeries(candles []models.Candle, period int) []float64 {
	result := make([]float64, len(candles))
	if len(candles) <= period {
		return result
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += trueRange(candles[i], candles[i-1])
	}
	result[period] = sum / float64(period)

	for i := period + 1; i < len(candles); i++ {
		tr := trueRange(candles[i], candles[i-1])
		result[i] = (result[i-1]*float64(period-1) + tr) / float64(period)
	}
	return result
}

// adxSeries - ADX и направленные индикаторы +DI/-DI по Уайлдеру
func adxSeries(candles []models.Candle, period int) (adx, plusDI, minusDI []float64) {
	n := len(candles)
	adx = make([]float64, n)
	plusDI = make([]float64, n)
	minusDI = make([]float64, n)
	if n <= 2*period {
		return adx, plusDI, minusDI
	}

	var smTR, smPlusDM, smMinusDM float64
	dx := make([]float64, n)

	for i := 1; i < n; i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		plusDM, minusDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}
		tr := trueRange(candles[i], candles[i-1])

		if i <= period {
			smTR += tr
			smPlusDM += plusDM
			smMinusDM += minusDM
			if i < period {
				continue
			}
		} else {
			smTR = smTR - smTR/float64(period) + tr
			smPlusDM = smPlusDM - smPlusDM/float64(period) + plusDM
			smMinusDM = smMinusDM - smMinusDM/float64(period) + minusDM
		}

		if smTR > 0 {
			plusDI[i] = smPlusDM / smTR * 100
			minusDI[i] = smMinusDM / smTR * 100
		}
		diSum := plusDI[i] + minusDI[i]
		if diSum > 0 {
			dx[i] = utils.Abs(plusDI[i]-minusDI[i]) / diSum * 100
		}
	}

	var dxSum float64
	for i := period; i < 2*period; i++ {
		dxSum += dx[i]
	}
	adx[2*period-1] = dxSum / float64(period)
	for i := 2 * period; i < n; i++ {
		adx[i] = (adx[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return adx, plusDI, minusDI
}

func bollingerSeries(closes []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	n := len(closes)
	upper = make([]float64, n)
	middle = make([]float64, n)
	lower = make([]float64, n)

	for i := period - 1; i < n; i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += closes[j]
		}
		mean := sum / float64(period)

		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + stdDev*sd
		lower[i] = mean - stdDev*sd
	}
	return upper, middle, lower
}

// relativeVolumeSeries - отношение объема к его скользящему среднему
func relativeVolumeSeries(volumes []float64, period int) []float64 {
	result := make([]float64, len(volumes))
	for i := period; i < len(volumes); i++ {
		var sum float64
		for j := i - period; j < i; j++ {
			sum += volumes[j]
		}
		avg := sum / float64(period)
		if avg > 0 {
			result[i] = volumes[i] / avg
		}
	}
	return result
}

// ============================================================
// Дивергенции
// ============================================================

// bearishDivergenceAt: цена обновила максимум окна, RSI - нет
func bearishDivergenceAt(closes, rsi []float64, i, lookback int) bool {
	start := i - lookback
	if start < 0 || rsi[i] == 0 {
		return false
	}
	priceHigh, rsiAtPriceHigh := closes[start], rsi[start]
	for j := start; j < i; j++ {
		if closes[j] > priceHigh {
			priceHigh = closes[j]
			rsiAtPriceHigh = rsi[j]
		}
	}
	return closes[i] > priceHigh && rsi[i] < rsiAtPriceHigh
}

// bullishDivergenceAt: цена обновила минимум окна, RSI - нет
func bullishDivergenceAt(closes, rsi []float64, i, lookback int) bool {
	start := i - lookback
	if start < 0 || rsi[i] == 0 {
		return false
	}
	priceLow, rsiAtPriceLow := closes[start], rsi[start]
	for j := start; j < i; j++ {
		if closes[j] < priceLow {
			priceLow = closes[j]
			rsiAtPriceLow = rsi[j]
		}
	}
	return closes[i] < priceLow && rsi[i] > rsiAtPriceLow
}
