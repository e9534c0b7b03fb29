package sheet

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer decomposes accented characters and strips the
// combining marks, so "Execução" folds to "Execucao".
var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Slug canonicalizes a spreadsheet header into a stable column key:
// Unicode-folded, lowercased, with runs of non-alphanumerics collapsed
// into a single underscore. "H FINAL" -> "h_final",
// "Responsável da Manutenção" -> "responsavel_da_manutencao".
func Slug(header string) string {
	folded, _, err := transform.String(foldTransformer, header)
	if err != nil {
		folded = header
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
