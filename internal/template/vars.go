package template

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Placeholder tokens look like {{1}} or {{name}}. Whitespace inside the
// braces is not part of the key.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Validation sentinels, in the order the rules are checked. ValidateBodyVariables
// reports only the first rule broken.
var (
	ErrNonNumericKey     = errors.New("body placeholders must be numeric")
	ErrFirstKeyNotOne    = errors.New("first body placeholder must be {{1}}")
	ErrDuplicateKey      = errors.New("body placeholders must not repeat")
	ErrNonSequentialKeys = errors.New("body placeholders must be sequential with no gaps")
)

// ExtractKeys returns the distinct placeholder keys in text, in
// first-occurrence order. Repeat occurrences of a key are dropped.
func ExtractKeys(text string) []string {
	matches := placeholderRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		key := m[1]
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

// allOccurrences returns every placeholder key in text order, repeats included.
func allOccurrences(text string) []string {
	matches := placeholderRe.FindAllStringSubmatch(text, -1)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, m[1])
	}
	return keys
}

// ValidateBodyVariables enforces the positional placeholder rules on body
// text: every key numeric, the first key "1", no repeats, and the distinct
// keys forming the contiguous run 1..N in occurrence order. The returned
// error names the first rule broken; nil means the text may be compiled.
func ValidateBodyVariables(text string) error {
	occurrences := allOccurrences(text)
	if len(occurrences) == 0 {
		return nil
	}

	for _, key := range occurrences {
		if !isDecimal(key) {
			return fmt.Errorf("%w: {{%s}}", ErrNonNumericKey, key)
		}
	}

	if occurrences[0] != "1" {
		return fmt.Errorf("%w: found {{%s}}", ErrFirstKeyNotOne, occurrences[0])
	}

	seen := make(map[string]bool, len(occurrences))
	for _, key := range occurrences {
		if seen[key] {
			return fmt.Errorf("%w: {{%s}} occurs more than once", ErrDuplicateKey, key)
		}
		seen[key] = true
	}

	for i, key := range occurrences {
		if key != strconv.Itoa(i+1) {
			return fmt.Errorf("%w: expected {{%d}}, found {{%s}}", ErrNonSequentialKeys, i+1, key)
		}
	}

	return nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Fill substitutes bound placeholder values into text. Unbound placeholders
// are left literally in place so partially filled drafts still preview.
func Fill(text string, bindings Bindings) string {
	if len(bindings) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(token string) string {
		key := placeholderRe.FindStringSubmatch(token)[1]
		if value, ok := bindings[key]; ok {
			return value
		}
		return token
	})
}
