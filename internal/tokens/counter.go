// Package tokens estimates token usage for responses whose agent run did not
// report its own accounting.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens with tiktoken, caching codecs by encoding.
type Counter struct {
	mu    sync.RWMutex
	cache map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter creates a Counter.
func NewCounter() *Counter {
	return &Counter{cache: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// encodingFor maps model names to encodings. Agent-backed models and unknown
// names use o200k_base; older OpenAI families map to theirs.
func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

func (c *Counter) codec(model string) (tokenizer.Codec, error) {
	encoding := encodingFor(model)

	c.mu.RLock()
	if cached, ok := c.cache[encoding]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[encoding] = codec
	c.mu.Unlock()
	return codec, nil
}

// Count returns the token count of text under model's encoding, falling back
// to a length-based estimate when the codec cannot load.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	codec, err := c.codec(model)
	if err != nil {
		return fallbackCount(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return fallbackCount(text)
	}
	return len(ids)
}

// Estimate returns prompt and completion token counts for one interaction.
func (c *Counter) Estimate(model, prompt, completion string) (int, int) {
	return c.Count(model, prompt), c.Count(model, completion)
}

// fallbackCount approximates four bytes per token.
func fallbackCount(text string) int {
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
