package captions

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ApplyTransform changes the casing of text according to transform.
func ApplyTransform(text string, transform TextTransform) string {
	switch transform {
	case TransformUppercase:
		return cases.Upper(language.Und).String(text)
	case TransformLowercase:
		return cases.Lower(language.Und).String(text)
	case TransformCapitalize:
		return cases.Title(language.Und).String(text)
	default:
		return text
	}
}
