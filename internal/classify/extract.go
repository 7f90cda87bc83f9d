package classify

import (
	"regexp"
	"strings"
)

var (
	dollarRegex = regexp.MustCompile(`\$\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?|\$\s?\d+(?:\.\d{2})?`)
	mrnRegex    = regexp.MustCompile(`(?i)\bMRN[:#\s]*([A-Z0-9-]{4,})\b`)
)

var payers = []string{
	"aetna",
	"bcbs",
	"blue cross",
	"cigna",
	"humana",
	"medicaid",
	"medicare",
	"united healthcare",
	"unitedhealthcare",
}

// Extract pulls conventional context entities out of message text. Keys are
// present only when a value was found; consumers must not assume any key.
func Extract(text string) map[string]any {
	blob := make(map[string]any)

	if amounts := dollarRegex.FindAllString(text, -1); len(amounts) > 0 {
		blob["dollar_amount"] = strings.ReplaceAll(amounts[0], " ", "")
	}

	if m := mrnRegex.FindStringSubmatch(text); len(m) == 2 {
		blob["mrn"] = m[1]
	}

	lower := strings.ToLower(text)
	for _, p := range payers {
		if strings.Contains(lower, p) {
			blob["insurance_provider"] = p
			break
		}
	}

	return blob
}
