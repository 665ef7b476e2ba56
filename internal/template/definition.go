package template

import (
	"encoding/json"
	"errors"
	"fmt"

	"whatsapp-broadcast/internal/gateway"
)

// Bindings maps placeholder keys ("1", "2", ... or bare names) to the literal
// values substituted at compile time.
type Bindings map[string]string

var (
	ErrDuplicateSegment = errors.New("template has more than one segment of the same type")
	ErrTooManyURLBtns   = errors.New("template has more than one URL button")
	ErrTooManyPhoneBtns = errors.New("template has more than one phone button")
)

// ValidateDefinition checks the structural invariants of a template
// definition: at most one segment of each type, at most one URL button and at
// most one phone button. A missing BODY is tolerated here; compilation
// enforces it.
func ValidateDefinition(def *gateway.Template) error {
	seen := make(map[string]bool, len(def.Components))
	for _, comp := range def.Components {
		if seen[comp.Type] {
			return fmt.Errorf("%w: %s", ErrDuplicateSegment, comp.Type)
		}
		seen[comp.Type] = true

		if comp.Type != gateway.SegmentButtons {
			continue
		}
		urlButtons, phoneButtons := 0, 0
		for _, btn := range comp.Buttons {
			switch btn.Type {
			case gateway.ButtonURL:
				urlButtons++
			case gateway.ButtonPhoneNumber:
				phoneButtons++
			}
		}
		if urlButtons > 1 {
			return ErrTooManyURLBtns
		}
		if phoneButtons > 1 {
			return ErrTooManyPhoneBtns
		}
	}
	return nil
}

// ParseStoredComponents decodes the components JSON cached in the local
// templates table back into the gateway schema.
func ParseStoredComponents(componentsJSON string) ([]gateway.TemplateComponent, error) {
	if componentsJSON == "" {
		return nil, nil
	}
	var components []gateway.TemplateComponent
	if err := json.Unmarshal([]byte(componentsJSON), &components); err != nil {
		return nil, fmt.Errorf("invalid stored components: %w", err)
	}
	return components, nil
}
