package jsonextract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON reports that no parseable JSON value was found.
var ErrNoJSON = errors.New("no json value found")

// Extract returns the JSON value held in text, or false when none can be
// recovered. Numbers decode as json.Number to keep their exact text.
func Extract(text string) (any, bool) {
	var value any
	if err := Decode(text, &value); err != nil {
		return nil, false
	}
	return value, true
}

// Decode applies the same recovery as Extract into a typed target.
func Decode(text string, target any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("%w: empty payload", ErrNoJSON)
	}
	if err := unmarshal(trimmed, target); err == nil {
		return nil
	}
	span, ok := braceSpan(trimmed)
	if !ok || span == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", ErrNoJSON, Snippet(trimmed))
	}
	if err := unmarshal(span, target); err != nil {
		return fmt.Errorf("%w: %v (span snippet: %s)", ErrNoJSON, err, Snippet(span))
	}
	return nil
}

func unmarshal(text string, target any) error {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return err
	}
	if rest := strings.TrimSpace(text[dec.InputOffset():]); rest != "" {
		return errors.New("trailing data after json value")
	}
	return nil
}

func braceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(text, "}")
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Snippet condenses text into a single short line for error messages.
func Snippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
