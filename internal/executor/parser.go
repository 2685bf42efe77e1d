package executor

import (
	"regexp"

	"github.com/shopspring/decimal"

	"rbi/internal/pkg/text"
)

// Classification 修复循环状态机的四个输入。
type Classification string

const (
	SuccessAtTarget    Classification = "SUCCESS_AT_TARGET"
	SuccessBelowTarget Classification = "SUCCESS_BELOW_TARGET"
	Failure            Classification = "FAILURE"
	Timeout            Classification = "TIMEOUT"
)

// DefaultErrorTailBytes extract_error 默认截取的尾部字节数。
const DefaultErrorTailBytes = 8 * 1024

// returnLineRe 只取统计块里第一个 "Return [%]" 行，不解析整个统计块。
var returnLineRe = regexp.MustCompile(`Return \[%\]\s+([-+]?\d+(?:\.\d+)?)`)

// Parser 把执行结果映射为分类，并抽取可供 Debug 消费的错误文本。
type Parser struct {
	ErrorTailBytes int
}

func NewParser() *Parser {
	return &Parser{ErrorTailBytes: DefaultErrorTailBytes}
}

// Classify 分类规则：超时 > 非零退出 > 收益行比对 > 缺收益行视为代码缺陷。
// 阈值比较用 decimal，恰好达标也算命中。
func (p *Parser) Classify(res ExecutionResult, targetReturnPct float64) Classification {
	if res.TimedOut {
		return Timeout
	}
	if res.ReturnCode != 0 {
		return Failure
	}
	m := returnLineRe.FindStringSubmatch(res.Stdout)
	if m == nil {
		return Failure
	}
	got, err := decimal.NewFromString(m[1])
	if err != nil {
		return Failure
	}
	if got.GreaterThanOrEqual(decimal.NewFromFloat(targetReturnPct)) {
		return SuccessAtTarget
	}
	return SuccessBelowTarget
}

// ReturnPct 提取收益百分比，供图表与状态接口使用。
func (p *Parser) ReturnPct(res ExecutionResult) (float64, bool) {
	m := returnLineRe.FindStringSubmatch(res.Stdout)
	if m == nil {
		return 0, false
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// ExtractError 取 stderr 尾部；stderr 为空时退回 stdout 尾部。
func (p *Parser) ExtractError(res ExecutionResult) string {
	n := p.ErrorTailBytes
	if n <= 0 {
		n = DefaultErrorTailBytes
	}
	if res.Stderr != "" {
		return text.Tail(res.Stderr, n)
	}
	return text.Tail(res.Stdout, n)
}
