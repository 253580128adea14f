package failures

import "strings"

const errorListSeparator = ", "

// MessageExtractor pulls a candidate message out of a decoded body.
type MessageExtractor struct {
	Name    string
	Extract func(Body) string
}

// Extractors is the lookup order for object bodies. "detail" carries
// business-rule rejections and must stay first.
var Extractors = []MessageExtractor{
	fieldExtractor("detail"),
	fieldExtractor("message"),
	fieldExtractor("error"),
	fieldExtractor("title"),
	fieldExtractor("errorMessage"),
	fieldExtractor("msg"),
	{
		Name: "errors",
		Extract: func(body Body) string {
			items, ok := body.ErrorList()
			if !ok {
				return ""
			}
			return strings.Join(items, errorListSeparator)
		},
	},
}

func fieldExtractor(field string) MessageExtractor {
	return MessageExtractor{
		Name: field,
		Extract: func(body Body) string {
			return body.stringField(field)
		},
	}
}

func extractMessage(body Body) (string, bool) {
	if body.Shape != ShapeObject {
		return "", false
	}
	for _, extractor := range Extractors {
		if message := strings.TrimSpace(extractor.Extract(body)); message != "" {
			return message, true
		}
	}
	return "", false
}
