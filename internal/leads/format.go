package leads

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const defaultStatusColor = "bg-gray-100 text-gray-800 border-gray-200"

var statusColors = map[string]string{
	"New":       "bg-blue-100 text-blue-800 border-blue-200",
	"Working":   "bg-yellow-100 text-yellow-800 border-yellow-200",
	"Quoted":    "bg-purple-100 text-purple-800 border-purple-200",
	"Won":       "bg-green-100 text-green-800 border-green-200",
	"Lost":      "bg-red-100 text-red-800 border-red-200",
	"Follow-up": "bg-orange-100 text-orange-800 border-orange-200",
	"Cold":      "bg-slate-100 text-slate-800 border-slate-200",
	"Warm":      "bg-amber-100 text-amber-800 border-amber-200",
	"Hot":       "bg-rose-100 text-rose-800 border-rose-200",
	"Qualified": "bg-indigo-100 text-indigo-800 border-indigo-200",
	"Converted": "bg-emerald-100 text-emerald-800 border-emerald-200",
}

const defaultSourceIcon = "📋"

var sourceIcons = map[string]string{
	"website":       "🌐",
	"referral":      "🤝",
	"email":         "📧",
	"phone":         "📞",
	"cold call":     "☎️",
	"social media":  "📱",
	"social":        "📱",
	"linkedin":      "💼",
	"event":         "🎪",
	"trade show":    "🎪",
	"advertisement": "📢",
	"partner":       "🤲",
	"walk-in":       "🚶",
	"tender":        "📑",
}

// capitalize trims s and upper-cases its first rune, lower-casing the rest.
func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// StatusColor returns the badge classes for a status in either spelling.
// Unknown statuses get the neutral gray classes.
func StatusColor(status string) string {
	if c, ok := statusColors[capitalize(status)]; ok {
		return c
	}
	return defaultStatusColor
}

// SourceIcon returns the glyph for a lead source.
func SourceIcon(source string) string {
	if icon, ok := sourceIcons[strings.ToLower(strings.TrimSpace(source))]; ok {
		return icon
	}
	return defaultSourceIcon
}

// FormatCurrency renders amount as whole rupees with Indian digit grouping,
// e.g. ₹1,50,000. Zero and non-finite amounts are "Not specified".
func FormatCurrency(amount float64) string {
	if amount == 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "Not specified"
	}

	rounded := math.Round(amount)
	if rounded == 0 {
		return "₹0"
	}

	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}

	return sign + "₹" + groupIndian(strconv.FormatFloat(rounded, 'f', 0, 64))
}

// FormatCurrencyPtr is FormatCurrency for optional amounts; nil is "Not specified".
func FormatCurrencyPtr(amount *float64) string {
	if amount == nil {
		return "Not specified"
	}
	return FormatCurrency(*amount)
}

// groupIndian inserts separators after the last three digits, then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}

	return strings.Join(groups, ",") + "," + tail
}
