package legacy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const codePrefix = "URB_"

// DefaultCategory is used for entries without a category.
const DefaultCategory = "Outros"

var categoryColors = map[string]string{
	"Ambiental":      "#10b981",
	"Social":         "#3b82f6",
	"Governança":     "#8b5cf6",
	"Infraestrutura": "#f59e0b",
	"Econômico":      "#ef4444",
	"Saúde":          "#ec4899",
	"Educação":       "#14b8a6",
}

const defaultColor = "#6b7280"

// CategoryColor returns the display color of a category.
func CategoryColor(name string) string {
	if c, ok := categoryColors[name]; ok {
		return c
	}
	return defaultColor
}

// NaturalCode derives the indicator code from its display name:
// "Qualidade da Água" becomes "URB_QUALIDADE_DA_AGUA".
func NaturalCode(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}

	var b strings.Builder
	b.WriteString(codePrefix)
	sep := false
	for _, r := range strings.ToUpper(plain) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > len(codePrefix) {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	return b.String()
}
