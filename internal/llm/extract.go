package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON pulls the first JSON object or array out of free-form LLM
// text, supporting fenced code blocks and bare objects/arrays. It tries,
// in order: a fenced ```json
// block, any fenced code block, then the first `{`/`[` through its
// matching close brace/bracket found by balance-counting. Returns "" if
// nothing parses as JSON.
func ExtractJSON(text string) string {
	if fenced, ok := extractFenced(text, "```json"); ok {
		return fenced
	}
	if fenced, ok := extractFenced(text, "```"); ok {
		return fenced
	}
	return extractBare(text)
}

func extractFenced(text, marker string) (string, bool) {
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	body := text[start+len(marker):]
	end := strings.Index(body, "```")
	if end < 0 {
		return "", false
	}
	candidate := strings.TrimSpace(body[:end])
	if gjson.Valid(candidate) {
		return candidate, true
	}
	return "", false
}

func extractBare(text string) string {
	for i, c := range text {
		if c != '{' && c != '[' {
			continue
		}
		closer := byte('}')
		if c == '[' {
			closer = ']'
		}
		if end, ok := matchBrace(text[i:], byte(c), closer); ok {
			candidate := text[i : i+end]
			if gjson.Valid(candidate) {
				return candidate
			}
		}
	}
	return ""
}

// matchBrace finds the index (exclusive end) one past the brace/bracket
// that balances s[0], ignoring braces inside quoted strings.
func matchBrace(s string, open, close byte) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}
