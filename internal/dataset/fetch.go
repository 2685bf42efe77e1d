package dataset

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"rbi/internal/logger"
)

const maxKlineLimit = 1500

// Fetcher 从 Binance 合约行情拉 K 线生成数据文件。
type Fetcher struct {
	client *futures.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{client: futures.NewClient("", "")}
}

// Ensure 数据文件已存在则原样保留；否则拉取并落盘。
func (f *Fetcher) Ensure(ctx context.Context, path, symbol, interval string, limit int) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	candles, err := f.Fetch(ctx, symbol, interval, limit)
	if err != nil {
		return err
	}
	logger.Infof("拉取 %s %s K 线 %d 根，写入 %s", symbol, interval, len(candles), path)
	return WriteCSV(path, candles)
}

// Fetch 拉取最近 limit 根 K 线。
func (f *Fetcher) Fetch(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	symbol = strings.ReplaceAll(strings.TrimSpace(symbol), "/", "")
	if symbol == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	if limit <= 0 {
		limit = 1000
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	kls, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(strings.ToLower(strings.TrimSpace(interval))).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, Candle{
			Time:   time.UnixMilli(kl.OpenTime).UTC(),
			Open:   mustFloat(kl.Open),
			High:   mustFloat(kl.High),
			Low:    mustFloat(kl.Low),
			Close:  mustFloat(kl.Close),
			Volume: mustFloat(kl.Volume),
		})
	}
	return out, nil
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
