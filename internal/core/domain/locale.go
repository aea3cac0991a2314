package domain

type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleChinese Locale = "zh"

	DefaultLocale = LocaleEnglish
)

// hanRatioThreshold is the share of Han code points above which a query is treated as Chinese.
const hanRatioThreshold = 0.3

// DetectLocale guesses the query language from its share of CJK unified ideographs.
func DetectLocale(text string) Locale {
	total := 0
	han := 0
	for _, r := range text {
		total++
		if r >= 0x4E00 && r <= 0x9FA5 {
			han++
		}
	}
	if total == 0 {
		return LocaleEnglish
	}
	if float64(han)/float64(total) > hanRatioThreshold {
		return LocaleChinese
	}
	return LocaleEnglish
}

func (l Locale) Valid() bool {
	return l == LocaleEnglish || l == LocaleChinese
}
