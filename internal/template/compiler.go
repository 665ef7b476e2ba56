package template

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"whatsapp-broadcast/internal/gateway"
)

var (
	ErrMissingBody        = errors.New("template has no BODY segment")
	ErrMissingMediaHandle = errors.New("media header has no uploaded handle")
	ErrUnknownFormat      = errors.New("unknown header format")
)

// Compile turns a template definition plus a variable binding map plus an
// optional resolved media handle into the wire segment list the gateway
// expects. It performs no I/O. Segments are emitted in the same relative
// order as the definition's components; only components that carry
// parameters produce output (the gateway already holds the literal text of
// the stored template, footers included).
func Compile(def *gateway.Template, bindings Bindings, mediaID string) ([]gateway.Segment, error) {
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}

	body := findComponent(def, gateway.SegmentBody)
	if body == nil {
		return nil, ErrMissingBody
	}
	if err := ValidateBodyVariables(body.Text); err != nil {
		return nil, err
	}

	var segments []gateway.Segment
	for _, comp := range def.Components {
		switch comp.Type {
		case gateway.SegmentHeader:
			seg, err := compileHeader(comp, bindings, mediaID)
			if err != nil {
				return nil, err
			}
			if seg != nil {
				segments = append(segments, *seg)
			}
		case gateway.SegmentBody:
			if seg := compileBody(comp, bindings); seg != nil {
				segments = append(segments, *seg)
			}
		case gateway.SegmentFooter:
			// Literal text only, never parameterized; nothing to fill.
		case gateway.SegmentButtons:
			segments = append(segments, compileButtons(comp, bindings)...)
		}
	}
	return segments, nil
}

func findComponent(def *gateway.Template, segmentType string) *gateway.TemplateComponent {
	for i := range def.Components {
		if def.Components[i].Type == segmentType {
			return &def.Components[i]
		}
	}
	return nil
}

func compileHeader(comp gateway.TemplateComponent, bindings Bindings, mediaID string) (*gateway.Segment, error) {
	switch comp.Format {
	case gateway.FormatText, "":
		// Named keys are tolerated here; unresolved ones stay literal so a
		// partially filled draft still previews.
		if len(ExtractKeys(comp.Text)) == 0 {
			return nil, nil
		}
		return &gateway.Segment{
			Type:       "header",
			Parameters: []gateway.Parameter{{Type: "text", Text: Fill(comp.Text, bindings)}},
		}, nil
	case gateway.FormatImage, gateway.FormatVideo, gateway.FormatDocument:
		if mediaID == "" {
			return nil, fmt.Errorf("%w: header format %s", ErrMissingMediaHandle, comp.Format)
		}
		ref := &gateway.MediaRef{ID: mediaID}
		param := gateway.Parameter{}
		switch comp.Format {
		case gateway.FormatImage:
			param = gateway.Parameter{Type: "image", Image: ref}
		case gateway.FormatVideo:
			param = gateway.Parameter{Type: "video", Video: ref}
		case gateway.FormatDocument:
			param = gateway.Parameter{Type: "document", Document: ref}
		}
		return &gateway.Segment{Type: "header", Parameters: []gateway.Parameter{param}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, comp.Format)
	}
}

func compileBody(comp gateway.TemplateComponent, bindings Bindings) *gateway.Segment {
	keys := ExtractKeys(comp.Text)
	if len(keys) == 0 {
		return nil
	}

	// Validation guarantees occurrence order equals numeric order, but the
	// wire contract is numeric order, so sort rather than trust the text.
	indices := make([]int, 0, len(keys))
	for _, key := range keys {
		n, _ := strconv.Atoi(key)
		indices = append(indices, n)
	}
	sort.Ints(indices)

	params := make([]gateway.Parameter, 0, len(indices))
	for _, n := range indices {
		params = append(params, gateway.Parameter{Type: "text", Text: bindings[strconv.Itoa(n)]})
	}
	return &gateway.Segment{Type: "body", Parameters: params}
}

func compileButtons(comp gateway.TemplateComponent, bindings Bindings) []gateway.Segment {
	var segments []gateway.Segment
	for i, btn := range comp.Buttons {
		if btn.Type != gateway.ButtonURL {
			continue
		}
		keys := ExtractKeys(btn.URL)
		if len(keys) == 0 {
			continue
		}
		params := make([]gateway.Parameter, 0, len(keys))
		for _, key := range keys {
			params = append(params, gateway.Parameter{Type: "text", Text: bindings[key]})
		}
		segments = append(segments, gateway.Segment{
			Type:       "button",
			SubType:    "url",
			Index:      strconv.Itoa(i),
			Parameters: params,
		})
	}
	return segments
}
