package voice

import (
	"regexp"
	"strings"
)

// Gender is the preferred voice gender.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// ParseGender returns GenderMale for "male" and GenderFemale otherwise.
func ParseGender(s string) Gender {
	if strings.EqualFold(strings.TrimSpace(s), string(GenderMale)) {
		return GenderMale
	}
	return GenderFemale
}

// Pitch returns the synthesis pitch for the gender.
func (g Gender) Pitch() float64 {
	if g == GenderMale {
		return 0.85
	}
	return 1.1
}

// Voice is one entry of a synthesizer's catalog.
type Voice struct {
	// ID is what the synthesizer needs to select the voice.
	ID   string `json:"id"`
	Name string `json:"name"`
	Lang string `json:"lang"`

	// Gender is set when the engine reports it.
	Gender Gender `json:"gender,omitempty"`
}

var (
	maleNames   = regexp.MustCompile(`(?i)male|man|мужской|мужчина|matthew|dmitry|yuri|андрей|артем`)
	femaleNames = regexp.MustCompile(`(?i)female|woman|женский|женщина|alice|oksana|катя|милена|samantha|victoria`)
)

// VoiceQuery describes the wanted voice.
type VoiceQuery struct {
	// Lang is a BCP 47 tag; voices match on its primary subtag.
	Lang   string
	Gender Gender

	// Favorite is a voice name that wins whenever it is in the catalog.
	Favorite string
}

// voiceRule picks a voice from candidates or reports no match.
type voiceRule struct {
	name string
	pick func(all, sameLang []Voice, q VoiceQuery) (Voice, bool)
}

// voiceRules are tried in order; the first match wins.
var voiceRules = []voiceRule{
	{name: "favorite", pick: func(all, _ []Voice, q VoiceQuery) (Voice, bool) {
		if q.Favorite == "" {
			return Voice{}, false
		}
		return first(all, func(v Voice) bool { return v.Name == q.Favorite })
	}},
	{name: "gender", pick: func(_, sameLang []Voice, q VoiceQuery) (Voice, bool) {
		return first(sameLang, func(v Voice) bool { return hasGender(v, q.Gender) })
	}},
	{name: "position", pick: func(_, sameLang []Voice, q VoiceQuery) (Voice, bool) {
		if len(sameLang) == 0 {
			return Voice{}, false
		}
		if q.Gender == GenderMale && len(sameLang) > 1 {
			return sameLang[1], true
		}
		return sameLang[0], true
	}},
	{name: "any", pick: func(all, _ []Voice, _ VoiceQuery) (Voice, bool) {
		if len(all) == 0 {
			return Voice{}, false
		}
		return all[0], true
	}},
}

// SelectVoice chooses a voice from catalog: the favorite, then a voice of the
// language whose name or reported gender matches, then the first (female) or
// second (male) voice of the language, then any voice. It reports false only
// for an empty catalog.
func SelectVoice(catalog []Voice, q VoiceQuery) (Voice, bool) {
	lang := PrimarySubtag(q.Lang)
	var sameLang []Voice
	for _, v := range catalog {
		if PrimarySubtag(v.Lang) == lang {
			sameLang = append(sameLang, v)
		}
	}

	for _, rule := range voiceRules {
		if v, ok := rule.pick(catalog, sameLang, q); ok {
			return v, true
		}
	}
	return Voice{}, false
}

func hasGender(v Voice, g Gender) bool {
	if v.Gender != "" {
		return v.Gender == g
	}
	// "female" contains "male", so a male match must not also look female.
	if g == GenderMale {
		return maleNames.MatchString(v.Name) && !femaleNames.MatchString(v.Name)
	}
	return femaleNames.MatchString(v.Name)
}

func first(voices []Voice, match func(Voice) bool) (Voice, bool) {
	for _, v := range voices {
		if match(v) {
			return v, true
		}
	}
	return Voice{}, false
}
