package dataset

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// IndicatorSnapshot 数据文件末端的关键指标读数，用于启动时的健全性日志。
type IndicatorSnapshot struct {
	Candles   int     `json:"candles"`
	LastClose float64 `json:"last_close"`
	RSI14     float64 `json:"rsi_14"`
	ATR14     float64 `json:"atr_14"`
	MACD      float64 `json:"macd"`
	MACDSig   float64 `json:"macd_signal"`
}

func (s IndicatorSnapshot) String() string {
	return fmt.Sprintf("candles=%d close=%.2f rsi14=%.1f atr14=%.2f macd=%.4f",
		s.Candles, s.LastClose, s.RSI14, s.ATR14, s.MACD)
}

// Describe 计算末根 K 线的 RSI(14)/ATR(14)/MACD(12,26,9)。
// 数据不足以填满指标窗口时返回错误。
func Describe(candles []Candle) (IndicatorSnapshot, error) {
	const minCandles = 35 // MACD 慢线 26 + 信号 9
	if len(candles) < minCandles {
		return IndicatorSnapshot{}, fmt.Errorf("需要至少 %d 根 K 线，只有 %d", minCandles, len(candles))
	}
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		high[i] = c.High
		low[i] = c.Low
		closes[i] = c.Close
	}

	rsi := talib.Rsi(closes, 14)
	atr := talib.Atr(high, low, closes, 14)
	macd, signal, _ := talib.Macd(closes, 12, 26, 9)

	last := len(candles) - 1
	return IndicatorSnapshot{
		Candles:   len(candles),
		LastClose: closes[last],
		RSI14:     rsi[last],
		ATR14:     atr[last],
		MACD:      macd[last],
		MACDSig:   signal[last],
	}, nil
}
