// Package validation implements the table-driven checks and formatters used
// by checkout forms. Rules come from a registry.Registry; nothing here does I/O.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
)

// Reason classifies a validation failure.
type Reason string

const (
	InvalidCurrency    Reason = "invalid_currency"
	InvalidFormat      Reason = "invalid_format"
	BelowMinimum       Reason = "below_minimum"
	AboveMaximum       Reason = "above_maximum"
	UnsupportedCountry Reason = "unsupported_country"
	UnknownProvider    Reason = "unknown_provider"
	PrefixMismatch     Reason = "prefix_mismatch"
)

// Error is returned by the validators. Message is the user-facing text.
type Error struct {
	Field   string
	Reason  Reason
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same Reason, so callers can write
// errors.Is(err, &validation.Error{Reason: validation.BelowMinimum}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}

// Sentinels for errors.Is.
var (
	ErrInvalidCurrency    = &Error{Reason: InvalidCurrency}
	ErrInvalidFormat      = &Error{Reason: InvalidFormat}
	ErrBelowMinimum       = &Error{Reason: BelowMinimum}
	ErrAboveMaximum       = &Error{Reason: AboveMaximum}
	ErrUnsupportedCountry = &Error{Reason: UnsupportedCountry}
	ErrUnknownProvider    = &Error{Reason: UnknownProvider}
	ErrPrefixMismatch     = &Error{Reason: PrefixMismatch}
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usEnglish     = message.NewPrinter(language.AmericanEnglish)
)

// Validator runs checks against a registry.
type Validator struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Validator {
	return &Validator{reg: reg}
}

func (v *Validator) Registry() *registry.Registry {
	return v.reg
}

func (v *Validator) ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone checks phone against the country's pattern. Countries without
// a rule, and unknown countries, accept any input.
func (v *Validator) ValidatePhone(phone, country string) bool {
	rule := v.reg.PhoneRule(country)
	if rule == nil {
		return true
	}
	return rule.MatchString(phone)
}

// ValidateAmount parses amount and checks it against the currency's inclusive
// bounds.
func (v *Validator) ValidateAmount(amount, currency string) (decimal.Decimal, error) {
	cur, ok := v.reg.LookupCurrency(currency)
	if !ok {
		return decimal.Zero, &Error{Field: "amount", Reason: InvalidCurrency, Message: "Invalid currency"}
	}

	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, &Error{Field: "amount", Reason: InvalidFormat, Message: "Invalid amount format"}
	}

	if d.LessThan(cur.MinAmount) {
		return d, &Error{
			Field:   "amount",
			Reason:  BelowMinimum,
			Message: fmt.Sprintf("Minimum amount is %s%s", cur.Symbol, cur.MinAmount.String()),
		}
	}
	if d.GreaterThan(cur.MaxAmount) {
		return d, &Error{
			Field:   "amount",
			Reason:  AboveMaximum,
			Message: fmt.Sprintf("Maximum amount is %s%s", cur.Symbol, cur.MaxAmount.String()),
		}
	}
	return d, nil
}

// ValidateMobileMoneyNumber checks that phone starts with one of the
// provider's prefixes once non-digits and the country dial code are removed.
func (v *Validator) ValidateMobileMoneyNumber(phone, provider, country string) error {
	c, ok := v.reg.LookupCountry(country)
	if !ok || len(c.MobileMoneyProviders) == 0 {
		return &Error{Field: "mobile_money_number", Reason: UnsupportedCountry, Message: "Mobile money not supported"}
	}

	p, ok := c.Provider(provider)
	if !ok {
		return &Error{Field: "mobile_money_provider", Reason: UnknownProvider, Message: "Invalid provider"}
	}

	clean := digitsOnly(phone)
	if dial := c.DialCode(); dial != "" {
		clean = strings.Replace(clean, dial, "", 1)
	}

	for _, prefix := range p.Prefixes {
		if strings.HasPrefix(clean, prefix) {
			return nil
		}
	}

	return &Error{
		Field:   "mobile_money_number",
		Reason:  PrefixMismatch,
		Message: fmt.Sprintf("Invalid %s number. Must start with %s", p.Name, strings.Join(p.Prefixes, ", ")),
	}
}

// FormatPhoneNumber reduces phone to digits and returns it in international
// form. Unknown countries get the input back untouched.
func (v *Validator) FormatPhoneNumber(phone, country string) string {
	c, ok := v.reg.LookupCountry(country)
	if !ok {
		return phone
	}

	digits := digitsOnly(phone)
	if dial := c.DialCode(); !strings.HasPrefix(digits, dial) {
		return "+" + dial + strings.TrimPrefix(digits, "0")
	}
	return "+" + digits
}

// NationalNumber rewrites an international number into the trunk-prefixed
// local form ("+233201234567" becomes "0201234567"). Numbers already in local
// form are returned as digits.
func (v *Validator) NationalNumber(phone, country string) string {
	c, ok := v.reg.LookupCountry(country)
	if !ok {
		return phone
	}
	digits := digitsOnly(phone)
	dial := c.DialCode()
	if dial != "" && strings.HasPrefix(digits, dial) && !strings.HasPrefix(digits, "0") {
		return "0" + strings.TrimPrefix(digits, dial)
	}
	return digits
}

// FormatCurrency renders amount with the currency symbol and en-US grouping,
// e.g. "₦1,000.00". Unknown currencies render as a plain decimal.
func (v *Validator) FormatCurrency(amount decimal.Decimal, currency string) string {
	cur, ok := v.reg.LookupCurrency(currency)
	if !ok {
		return amount.String()
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	f, _ := amount.Round(cur.Decimals).Float64()
	digits := usEnglish.Sprint(number.Decimal(f,
		number.MinFractionDigits(int(cur.Decimals)),
		number.MaxFractionDigits(int(cur.Decimals)),
	))
	return sign + cur.Symbol + digits
}

func (v *Validator) FormatSubunit(n int64, currency string) string {
	return v.FormatCurrency(v.reg.FromSubunit(n, currency), currency)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
