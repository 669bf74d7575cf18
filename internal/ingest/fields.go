package ingest

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Summaries truncate the description at this many runes before the ellipsis.
const summaryMaxRunes = 500

// Descriptions shorter than this fall back to the title for the summary.
const minUsableDescriptionRunes = 10

var flexibleDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006-01-02",
}

// ParseFlexibleDate tries the known source date layouts in order and returns
// the first successful UTC parse. A false result means no layout matched,
// which callers log as a warning and map to a null date.
func ParseFlexibleDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}

	for _, layout := range flexibleDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

var rollingSignals = map[string]bool{
	"none":     true,
	"rolling":  true,
	"multiple": true,
}

// ParseCloseDate distinguishes a "no fixed deadline" signal from a parseable
// or missing date. isRolling is true for the sentinel values, in which case
// the date stays nil.
func ParseCloseDate(raw string) (closeDate *time.Time, isRolling bool, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false, true
	}
	if rollingSignals[strings.ToLower(trimmed)] {
		return nil, true, true
	}
	parsed, parsedOK := ParseFlexibleDate(trimmed)
	if !parsedOK {
		return nil, false, false
	}
	return &parsed, false, true
}

// ParseMoney strips currency decoration and parses an amount. Empty values,
// a literal zero, and negative amounts mean "amount unknown" and return nil.
func ParseMoney(raw string) *int64 {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" || cleaned == "0" {
		return nil
	}

	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	if parsed <= 0 {
		return nil
	}
	value := int64(parsed)
	return &value
}

// BuildSummary derives the short display text from the description, falling
// back to the title when the description is absent or too short to be useful.
func BuildSummary(description, title string) string {
	base := strings.TrimSpace(description)
	if len([]rune(base)) < minUsableDescriptionRunes {
		base = strings.TrimSpace(title)
	}

	runes := []rune(base)
	if len(runes) > summaryMaxRunes {
		return string(runes[:summaryMaxRunes]) + "..."
	}
	return base
}

// SynthesizeDescription builds a usable description from structural fields so
// the embedding stage never operates on an empty string.
func SynthesizeDescription(title, agency, opportunityNumber string, cfdaNumbers []string) string {
	parts := make([]string, 0, 4)

	title = strings.TrimSpace(title)
	if title != "" {
		parts = append(parts, "Funding opportunity: "+title+".")
	}
	agency = strings.TrimSpace(agency)
	if agency != "" {
		parts = append(parts, "Offered by "+agency+".")
	}
	opportunityNumber = strings.TrimSpace(opportunityNumber)
	if opportunityNumber != "" {
		parts = append(parts, "Opportunity number "+opportunityNumber+".")
	}
	if len(cfdaNumbers) > 0 {
		parts = append(parts, "Assistance listings: "+strings.Join(cfdaNumbers, ", ")+".")
	}

	return strings.Join(parts, " ")
}

type focusRule struct {
	area     string
	keywords []string
}

var focusRules = []focusRule{
	{area: "health", keywords: []string{"medical", "health", "disease"}},
	{area: "technology", keywords: []string{"research", "tech", "software", "digital"}},
	{area: "defense", keywords: []string{"security", "military", "national defense"}},
	{area: "social", keywords: []string{"community", "family", "assistance"}},
}

// InferFocusAreas scans the title for keyword hits against the fixed
// category mapping. Zero hits yield an empty set, which is fine.
func InferFocusAreas(title string) []string {
	lower := strings.ToLower(title)
	areas := make([]string, 0, len(focusRules))
	for _, rule := range focusRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				areas = append(areas, rule.area)
				break
			}
		}
	}
	return areas
}

// UnionStrings merges two string sets preserving first-seen order.
func UnionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, values := range [][]string{a, b} {
		for _, v := range values {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// StripMarkup extracts plain text from HTML-bearing source fields. Plain
// text passes through unchanged apart from whitespace collapsing.
func StripMarkup(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return collapseWhitespace(raw)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			break
		}
		if tokenType == html.TextToken {
			b.WriteString(tokenizer.Token().Data)
			b.WriteByte(' ')
		}
	}
	return collapseWhitespace(b.String())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
