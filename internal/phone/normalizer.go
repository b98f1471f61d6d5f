package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// CountryCode is the dialing prefix of the campaign's market.
const CountryCode = "380"

// nationalLength is the number of digits in a national subscriber number.
const nationalLength = 9

// Normalize canonicalizes a raw phone number into its 9-digit national form.
// It strips every non-digit character, collapses a doubled country prefix
// (a literal repetition of the country code, seen in imported CRM data), and
// removes a single leading country code. Returns "" when the result is not
// exactly 9 digits; callers treat that as a validation failure.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		// Only ASCII digits count: a Unicode digit (e.g. ٣) is not a
		// dialable character, and keeping it would let a multi-byte rune
		// slip past the byte-length check below.
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, CountryCode+CountryCode) {
		digits = digits[len(CountryCode):]
	}
	if len(digits) > nationalLength && strings.HasPrefix(digits, CountryCode) {
		digits = digits[len(CountryCode):]
	}

	if len(digits) != nationalLength {
		return ""
	}
	return digits
}

// Dialable renders a normalized national number as a validated E.164 dial
// target for the telephony provider.
func Dialable(national string) (string, error) {
	if len(national) != nationalLength {
		return "", fmt.Errorf("invalid national number %q", national)
	}

	candidate := "+" + CountryCode + national
	num, err := phonenumbers.Parse(candidate, "")
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", candidate, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("number %s is not dialable", candidate)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
