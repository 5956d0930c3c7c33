package tokens

import (
	"strings"
	"testing"

	"github.com/tiktoken-go/tokenizer"
)

func TestCounterCount(t *testing.T) {
	c := NewCounter()

	n := c.Count("agentwrap-codex", "Hello, world! This is a token counting test.")
	if n <= 0 {
		t.Fatalf("Count = %d, want positive", n)
	}
	if again := c.Count("agentwrap-codex", "Hello, world! This is a token counting test."); again != n {
		t.Errorf("Count not stable: %d then %d", n, again)
	}
	if c.Count("agentwrap-codex", "") != 0 {
		t.Error("empty text should count as zero")
	}

	long := strings.Repeat("word ", 500)
	if c.Count("agentwrap-codex", long) <= n {
		t.Error("longer text should count more tokens")
	}
}

func TestCounterEstimate(t *testing.T) {
	c := NewCounter()
	prompt, completion := c.Estimate("agentwrap-codex", "user: what is 2+2?", "The answer is 4.")
	if prompt <= 0 || completion <= 0 {
		t.Errorf("Estimate = (%d, %d), want positive counts", prompt, completion)
	}
}

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		model string
		want  tokenizer.Encoding
	}{
		{"agentwrap-codex", tokenizer.O200kBase},
		{"gpt-4o-mini", tokenizer.O200kBase},
		{"gpt-4-turbo", tokenizer.Cl100kBase},
		{"gpt-3.5-turbo", tokenizer.Cl100kBase},
		{"something-new", tokenizer.O200kBase},
	}
	for _, tt := range tests {
		if got := encodingFor(tt.model); got != tt.want {
			t.Errorf("encodingFor(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestFallbackCount(t *testing.T) {
	if got := fallbackCount("abcdefgh"); got != 2 {
		t.Errorf("fallbackCount(8 bytes) = %d, want 2", got)
	}
	if got := fallbackCount("ab"); got != 1 {
		t.Errorf("fallbackCount(short) = %d, want at least 1", got)
	}
}
