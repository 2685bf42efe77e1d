package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanStripsThinkSpans(t *testing.T) {
	raw := "<think>internal reasoning here</think>The strategy buys dips."
	assert.Equal(t, "The strategy buys dips.", Clean(raw, ContentText))
}

func TestCleanFallsBackAfterLastThink(t *testing.T) {
	// 全文都被标记包裹时，取最后一个闭合标记之后的内容
	raw := "<think>a</think><think>b</think>  final answer"
	assert.Equal(t, "final answer", Clean(raw, ContentText))
}

func TestCleanUnclosedThinkDropsTail(t *testing.T) {
	raw := "answer first\n<think>rambling without close"
	assert.Equal(t, "answer first", Clean(raw, ContentText))
}

func TestCleanExtractsPythonBlock(t *testing.T) {
	raw := "Here is the code:\n```python\nprint('bt v0')\n```\nHope it helps!"
	assert.Equal(t, "print('bt v0')", Clean(raw, ContentCode))
}

func TestCleanPrefersPythonOverOtherTags(t *testing.T) {
	raw := "```text\nnot code\n```\n```python\nx = 1\n```"
	assert.Equal(t, "x = 1", Clean(raw, ContentCode))
}

func TestCleanJoinsMultiplePythonBlocks(t *testing.T) {
	raw := "```python\nimport os\n```\nprose\n```python\nprint(os.name)\n```"
	assert.Equal(t, "import os\n\nprint(os.name)", Clean(raw, ContentCode))
}

func TestCleanAcceptsUntaggedFence(t *testing.T) {
	raw := "```\nprint('hi')\n```"
	assert.Equal(t, "print('hi')", Clean(raw, ContentCode))
}

func TestCleanCodeWithoutFenceReturnsVerbatim(t *testing.T) {
	raw := "  print('no fence')  "
	assert.Equal(t, "print('no fence')", Clean(raw, ContentCode))
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"plain text",
		"<think>x</think>answer",
		"```python\nprint(1)\n```",
		"prose\n```\ncode\n```\nmore prose",
		"",
		"   \n\t ",
	}
	for _, raw := range inputs {
		for _, ct := range []ContentType{ContentText, ContentCode} {
			once := Clean(raw, ct)
			assert.Equal(t, once, Clean(once, ct), "input %q type %s", raw, ct)
		}
	}
}

func TestCleanEmptyFenceOnly(t *testing.T) {
	// 只有围栏没有代码：抽取结果为空，由上游按 SanitizedEmpty 处理
	raw := "```python\n\n```"
	assert.Equal(t, "", Clean(raw, ContentCode))
}
