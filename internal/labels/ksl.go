package labels

// Korean fingerspelling (KSL) jamo labels.
var (
	KSLConsonants = []string{
		"ㄱ", "ㄲ", "ㄴ", "ㄷ", "ㄸ", "ㄹ", "ㅁ", "ㅂ", "ㅃ", "ㅅ",
		"ㅆ", "ㅇ", "ㅈ", "ㅉ", "ㅊ", "ㅋ", "ㅌ", "ㅍ", "ㅎ",
	}
	KSLVowels = []string{
		"ㅏ", "ㅐ", "ㅑ", "ㅒ", "ㅓ", "ㅔ", "ㅕ", "ㅖ", "ㅗ", "ㅘ",
		"ㅙ", "ㅚ", "ㅛ", "ㅜ", "ㅝ", "ㅞ", "ㅟ", "ㅠ", "ㅡ", "ㅢ", "ㅣ",
	}
)

// KSLPromotions maps each base consonant to its tense form.
var KSLPromotions = map[string]string{
	"ㄱ": "ㄲ",
	"ㄷ": "ㄸ",
	"ㅂ": "ㅃ",
	"ㅅ": "ㅆ",
	"ㅈ": "ㅉ",
}

// KSLSequenceLabels are the signs that are only distinguishable by motion:
// tense consonants and compound vowels.
var KSLSequenceLabels = []string{
	"ㄲ", "ㄸ", "ㅃ", "ㅆ", "ㅉ",
	"ㅘ", "ㅙ", "ㅚ", "ㅝ", "ㅞ", "ㅟ", "ㅢ",
}

// KSLNames returns all KSL labels, consonants first.
func KSLNames() []string {
	names := make([]string, 0, len(KSLConsonants)+len(KSLVowels))
	names = append(names, KSLConsonants...)
	return append(names, KSLVowels...)
}

// DefaultKSL returns the default KSL label set.
func DefaultKSL() *Set {
	set, err := NewSet(KSLNames(), KSLPromotions, KSLSequenceLabels)
	if err != nil {
		panic("labels: invalid KSL tables: " + err.Error())
	}
	return set
}
