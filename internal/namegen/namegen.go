// Package namegen 在 Research 阶段未给出 STRATEGY_NAME 时合成策略名。
package namegen

import (
	"math/rand"
	"strings"
	"sync"
	"unicode"
)

var adjectives = []string{
	"Bouncy", "Golden", "Silent", "Rapid", "Steady",
	"Hidden", "Lunar", "Brave", "Nimble", "Quiet",
	"Turbo", "Frozen", "Crimson", "Mellow", "Sharp",
}

var nouns = []string{
	"Diverger", "Breaker", "Momentum", "Scalper", "Reverter",
	"Hunter", "Rider", "Weaver", "Tracker", "Drifter",
	"Catcher", "Swinger", "Pivot", "Runner", "Seeker",
}

// Generator 以固定种子产生名称：同一次运行内可复现，跨运行无稳定性要求。
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Next 返回两词 PascalCase 名称；词表保证组合长度 ≥8。
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	adj := adjectives[g.rng.Intn(len(adjectives))]
	noun := nouns[g.rng.Intn(len(nouns))]
	return adj + noun
}

// Normalize 清理模型给出的策略名：仅保留字母数字，首字母大写。
// 清理后为空则返回 ""，由调用方转用合成名。
func Normalize(raw string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if upperNext && unicode.IsLetter(r) {
				r = unicode.ToUpper(r)
				upperNext = false
			}
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '-':
			upperNext = true
		}
	}
	return b.String()
}
