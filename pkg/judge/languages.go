package judge

import "strings"

// languageIDs maps supported language names to Judge0 backend identifiers.
// Requesting a language outside this table is a client-side validation error
// and is never forwarded to the judge service.
var languageIDs = map[string]int{
	"c":          50,
	"csharp":     51,
	"cpp":        54,
	"go":         60,
	"java":       62,
	"javascript": 63,
	"python":     71,
	"rust":       73,
}

// LanguageID resolves a language name to its judge backend id.
func LanguageID(language string) (int, bool) {
	id, ok := languageIDs[strings.ToLower(strings.TrimSpace(language))]
	return id, ok
}

// SupportedLanguages returns the names accepted by LanguageID.
func SupportedLanguages() []string {
	names := make([]string, 0, len(languageIDs))
	for name := range languageIDs {
		names = append(names, name)
	}
	return names
}
