package failures

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Shape identifies which known variant a server error body decoded into.
type Shape string

const (
	ShapeEmpty  Shape = "empty"
	ShapeObject Shape = "object"
	ShapeString Shape = "string"
	ShapeText   Shape = "text"
)

// Body is the decoded form of a server error payload.
type Body struct {
	Shape  Shape
	Fields map[string]any
	Text   string
}

// DecodeBody classifies raw response bytes. Decoding never fails: bytes that
// are not JSON are kept as text.
func DecodeBody(raw []byte) Body {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Body{Shape: ShapeEmpty}
	}
	var decoded any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&decoded); err != nil {
		return Body{Shape: ShapeText, Text: string(trimmed)}
	}
	return BodyFromValue(decoded)
}

// BodyFromValue classifies an already decoded payload.
func BodyFromValue(value any) Body {
	switch typed := value.(type) {
	case nil:
		return Body{Shape: ShapeEmpty}
	case map[string]any:
		return Body{Shape: ShapeObject, Fields: typed}
	case string:
		if strings.TrimSpace(typed) == "" {
			return Body{Shape: ShapeEmpty}
		}
		return Body{Shape: ShapeString, Text: typed}
	case []byte:
		return DecodeBody(typed)
	default:
		return Body{Shape: ShapeText, Text: fmt.Sprint(typed)}
	}
}

// ErrorList returns the "errors" list carried by an object body, if any.
func (b Body) ErrorList() ([]string, bool) {
	if b.Shape != ShapeObject {
		return nil, false
	}
	raw, ok := b.Fields["errors"]
	if !ok || raw == nil {
		return nil, false
	}
	switch typed := raw.(type) {
	case []string:
		return cleanList(typed), true
	case []any:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			if text := describeListItem(item); text != "" {
				items = append(items, text)
			}
		}
		return items, true
	default:
		return nil, false
	}
}

func (b Body) stringField(key string) string {
	if b.Shape != ShapeObject {
		return ""
	}
	value, ok := b.Fields[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case bool, float64, int, int64:
		return fmt.Sprint(typed)
	default:
		return ""
	}
}

func describeListItem(item any) string {
	switch typed := item.(type) {
	case string:
		return strings.TrimSpace(typed)
	case map[string]any:
		body := Body{Shape: ShapeObject, Fields: typed}
		message := firstNonEmpty(body.stringField("message"), body.stringField("defaultMessage"))
		field := body.stringField("field")
		switch {
		case message != "" && field != "":
			return field + ": " + message
		case message != "":
			return message
		default:
			return field
		}
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
