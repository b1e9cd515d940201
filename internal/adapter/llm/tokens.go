package llm

import (
	"sync"

	"log/slog"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// encoder cache: tiktoken setup is expensive, share per encoding name.
var (
	encMu  sync.Mutex
	encMap = map[string]*tiktoken.Tiktoken{}
)

func encoderFor(model string) *tiktoken.Tiktoken {
	encMu.Lock()
	defer encMu.Unlock()
	if enc, ok := encMap[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tiktoken unavailable; token counts approximate", slog.Any("error", err))
			return nil
		}
	}
	encMap[model] = enc
	return enc
}

// CountTokens counts prompt tokens for model, approximating with a
// 4-chars-per-token heuristic when no encoder is available.
func CountTokens(model, text string) int {
	if enc := encoderFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// TruncateToTokens clips text tail-first so it fits within budget tokens.
func TruncateToTokens(model, text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	enc := encoderFor(model)
	if enc == nil {
		max := budget * 4
		if len(text) <= max {
			return text
		}
		return text[:max]
	}
	ids := enc.Encode(text, nil, nil)
	if len(ids) <= budget {
		return text
	}
	return enc.Decode(ids[:budget])
}
