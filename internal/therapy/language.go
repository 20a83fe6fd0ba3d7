package therapy

import "strings"

var languageNames = map[string]string{
	"ar": "Arabic",
	"ca": "Catalan",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"eu": "Basque",
	"fr": "French",
	"gl": "Galician",
	"hi": "Hindi",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"sv": "Swedish",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"zh": "Chinese",
}

// LanguageName returns the English name for an ISO 639-1 code. Unknown codes
// are returned as given so the model still gets a usable hint.
func LanguageName(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
