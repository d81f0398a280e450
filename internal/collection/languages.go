package collection

// supportedLanguageCodes lists the content languages a collection may use.
var supportedLanguageCodes = map[string]bool{
	"en": true, "ar": true, "bg": true, "bn": true, "ca": true, "cs": true,
	"da": true, "de": true, "el": true, "es": true, "fa": true, "fi": true,
	"fr": true, "he": true, "hi": true, "hi-en": true, "hr": true, "hu": true,
	"id": true, "it": true, "ja": true, "ko": true, "lt": true, "lv": true,
	"mk": true, "nl": true, "no": true, "pcm": true, "pl": true, "pt": true,
	"ro": true, "ru": true, "sk": true, "sl": true, "sr": true, "sv": true,
	"sw": true, "th": true, "tr": true, "uk": true, "vi": true, "zh": true,
}

// IsValidLanguageCode reports whether code is a supported content language.
func IsValidLanguageCode(code string) bool {
	return supportedLanguageCodes[code]
}
