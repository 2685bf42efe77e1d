// Package report 把修复循环的历史渲染成 HTML 收益曲线图。
// 渲染失败只降级为告警，不影响流水线结果。
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"rbi/internal/artifact"
)

// LoopPoint 修复循环中一次迭代的观测值。
type LoopPoint struct {
	Iteration      int
	Classification string
	ReturnPct      float64
	HasReturn      bool
}

// RenderLoopChart 画出各迭代的收益百分比曲线并写到产物目录。
// 无成功迭代时也照常渲染，缺收益的点记为 0 并在提示里标注分类。
func RenderLoopChart(store *artifact.Store, strategy string, target float64, points []LoopPoint) (string, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("没有可渲染的迭代数据")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:     types.ThemeWesteros,
			PageTitle: strategy,
			Width:     "900px",
			Height:    "480px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s repair loop", strategy),
			Subtitle: fmt.Sprintf("target return %.1f%%", target),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Return [%]"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iteration"}),
	)

	var xAxis []string
	var series []opts.LineData
	var targetLine []opts.LineData
	for _, p := range points {
		xAxis = append(xAxis, fmt.Sprintf("v%d", p.Iteration))
		val := 0.0
		if p.HasReturn {
			val = p.ReturnPct
		}
		series = append(series, opts.LineData{
			Value: val,
			Name:  p.Classification,
		})
		targetLine = append(targetLine, opts.LineData{Value: target})
	}

	line.SetXAxis(xAxis).
		AddSeries("return", series, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)})).
		AddSeries("target", targetLine, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	path := store.ChartPath(strategy)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return "", err
	}
	return path, nil
}
