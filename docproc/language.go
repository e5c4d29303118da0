package docproc

import (
	"strings"

	"golang.org/x/text/language"
)

// Stopword markers used for quick language scoring. Real NLP is out of
// scope; this only needs to separate Spanish from English documents.
var (
	spanishMarkers = []string{"el ", "la ", "de ", "que ", "en ", "un ", "es ", "se ", "no ", "te "}
	englishMarkers = []string{"the ", "and ", "to ", "of ", "a ", "in ", "is ", "it ", "you ", "that "}
)

// DetectLanguage returns the BCP 47 tag of the detected language:
// "es", "en", or "und" when the markers tie.
func DetectLanguage(text string) string {
	lower := " " + strings.ToLower(text) + " "

	spanish, english := 0, 0
	for _, m := range spanishMarkers {
		if strings.Contains(lower, m) {
			spanish++
		}
	}
	for _, m := range englishMarkers {
		if strings.Contains(lower, m) {
			english++
		}
	}

	switch {
	case spanish > english:
		return language.Spanish.String()
	case english > spanish:
		return language.English.String()
	default:
		return language.Und.String()
	}
}
