package voice

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// PrimarySubtag returns the lower-cased primary language subtag of a BCP 47
// tag: "ru-RU" and "ru_RU" both give "ru".
func PrimarySubtag(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// LanguageName renders a language code in its own language, capitalised:
// "ru" gives "Русский", "de" gives "Deutsch". Codes that do not parse, such as
// "auto", are upper-cased.
func LanguageName(code string) string {
	if code == "" || strings.EqualFold(code, "auto") {
		return strings.ToUpper(code)
	}
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return strings.ToUpper(code)
	}
	name := display.Self.Name(tag)
	if name == "" {
		return strings.ToUpper(code)
	}
	return cases.Title(tag).String(name)
}
