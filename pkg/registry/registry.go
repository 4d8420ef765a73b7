// Package registry holds the country and currency tables that drive checkout
// forms and validation. A Registry is immutable once built.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies a way of paying offered in a country.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodUSSD         PaymentMethod = "ussd"
	MethodQR           PaymentMethod = "qr"
	MethodEFT          PaymentMethod = "eft"
)

// DefaultSubunitFactor is applied when converting amounts of an unknown currency.
const DefaultSubunitFactor int64 = 100

type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type MobileMoneyProvider struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Prefixes     []string `json:"prefixes"`
	Instructions string   `json:"instructions"`
}

// USSDCode is a dial string template for a bank, e.g. "*737*Amount*Account#".
type USSDCode struct {
	BankCode string `json:"bank_code"`
	BankName string `json:"bank_name"`
	Template string `json:"template"`
}

type Country struct {
	Code                 string                `json:"code"`
	Name                 string                `json:"name"`
	Currency             string                `json:"currency"`
	PhoneCode            string                `json:"phone_code"`
	Methods              []PaymentMethod       `json:"methods"`
	Banks                []Bank                `json:"banks,omitempty"`
	MobileMoneyProviders []MobileMoneyProvider `json:"mobile_money_providers,omitempty"`
	USSDCodes            []USSDCode            `json:"ussd_codes,omitempty"`
	PhonePattern         string                `json:"-"`
}

// DialCode is the phone code without its leading '+'.
func (c Country) DialCode() string {
	return strings.TrimPrefix(c.PhoneCode, "+")
}

func (c Country) Supports(m PaymentMethod) bool {
	return slices.Contains(c.Methods, m)
}

func (c Country) Provider(code string) (MobileMoneyProvider, bool) {
	for _, p := range c.MobileMoneyProviders {
		if p.Code == code {
			return p, true
		}
	}
	return MobileMoneyProvider{}, false
}

func (c Country) Bank(code string) (Bank, bool) {
	for _, b := range c.Banks {
		if b.Code == code {
			return b, true
		}
	}
	return Bank{}, false
}

func (c Country) USSDCode(bankCode string) (USSDCode, bool) {
	for _, u := range c.USSDCodes {
		if u.BankCode == bankCode {
			return u, true
		}
	}
	return USSDCode{}, false
}

func (c Country) clone() Country {
	c.Methods = slices.Clone(c.Methods)
	c.Banks = slices.Clone(c.Banks)
	c.USSDCodes = slices.Clone(c.USSDCodes)
	providers := make([]MobileMoneyProvider, len(c.MobileMoneyProviders))
	for i, p := range c.MobileMoneyProviders {
		p.Prefixes = slices.Clone(p.Prefixes)
		providers[i] = p
	}
	if c.MobileMoneyProviders == nil {
		providers = nil
	}
	c.MobileMoneyProviders = providers
	return c
}

type Currency struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	Decimals      int32           `json:"decimals"`
	MinAmount     decimal.Decimal `json:"min_amount"`
	MaxAmount     decimal.Decimal `json:"max_amount"`
	SubunitFactor int64           `json:"subunit_factor"`
}

// ToSubunit converts a major-unit amount to the integer amount the gateway
// expects on the wire, rounding half away from zero.
func (c Currency) ToSubunit(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(c.SubunitFactor)).Round(0).IntPart()
}

func (c Currency) FromSubunit(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Div(decimal.NewFromInt(c.SubunitFactor))
}

// Registry is the validated, read-only set of countries and currencies.
type Registry struct {
	countries     map[string]Country
	countryOrder  []string
	currencies    map[string]Currency
	currencyOrder []string
	phoneRules    map[string]*regexp.Regexp
}

// New validates the tables and builds a Registry. Every problem found is
// reported, not only the first.
func New(countries []Country, currencies []Currency) (*Registry, error) {
	r := &Registry{
		countries:  make(map[string]Country, len(countries)),
		currencies: make(map[string]Currency, len(currencies)),
		phoneRules: make(map[string]*regexp.Regexp),
	}

	var errs []error

	for _, cur := range currencies {
		code := normalize(cur.Code)
		switch {
		case code == "":
			errs = append(errs, errors.New("currency with empty code"))
			continue
		case r.hasCurrency(code):
			errs = append(errs, fmt.Errorf("currency %s: duplicate code", code))
			continue
		}
		if cur.SubunitFactor <= 0 {
			errs = append(errs, fmt.Errorf("currency %s: subunit factor must be positive", code))
		}
		if cur.Decimals < 0 {
			errs = append(errs, fmt.Errorf("currency %s: decimals must not be negative", code))
		}
		if !cur.MinAmount.IsPositive() || cur.MinAmount.GreaterThan(cur.MaxAmount) {
			errs = append(errs, fmt.Errorf("currency %s: bounds must satisfy 0 < min <= max", code))
		}
		cur.Code = code
		r.currencies[code] = cur
		r.currencyOrder = append(r.currencyOrder, code)
	}

	for _, c := range countries {
		code := normalize(c.Code)
		switch {
		case code == "":
			errs = append(errs, errors.New("country with empty code"))
			continue
		case r.hasCountry(code):
			errs = append(errs, fmt.Errorf("country %s: duplicate code", code))
			continue
		}
		c.Code = code
		c.Currency = normalize(c.Currency)
		errs = append(errs, r.checkCountry(c)...)

		if c.PhonePattern != "" {
			re, err := regexp.Compile(c.PhonePattern)
			if err != nil {
				errs = append(errs, fmt.Errorf("country %s: phone pattern: %w", code, err))
			} else {
				r.phoneRules[code] = re
			}
		}

		r.countries[code] = c.clone()
		r.countryOrder = append(r.countryOrder, code)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid registry: %w", err)
	}
	return r, nil
}

func (r *Registry) checkCountry(c Country) []error {
	var errs []error
	if _, ok := r.currencies[c.Currency]; !ok {
		errs = append(errs, fmt.Errorf("country %s: currency %q is not registered", c.Code, c.Currency))
	}
	if c.PhoneCode == "" || !strings.HasPrefix(c.PhoneCode, "+") {
		errs = append(errs, fmt.Errorf("country %s: phone code must start with '+'", c.Code))
	}
	for _, m := range c.Methods {
		if !knownMethod(m) {
			errs = append(errs, fmt.Errorf("country %s: unknown payment method %q", c.Code, m))
		}
	}
	if c.Supports(MethodMobileMoney) && len(c.MobileMoneyProviders) == 0 {
		errs = append(errs, fmt.Errorf("country %s: mobile money offered without providers", c.Code))
	}
	for _, p := range c.MobileMoneyProviders {
		if p.Code == "" || len(p.Prefixes) == 0 {
			errs = append(errs, fmt.Errorf("country %s: provider %q needs a code and prefixes", c.Code, p.Name))
		}
	}
	if c.Supports(MethodUSSD) && len(c.USSDCodes) == 0 {
		errs = append(errs, fmt.Errorf("country %s: ussd offered without dial codes", c.Code))
	}
	return errs
}

func (r *Registry) hasCountry(code string) bool {
	_, ok := r.countries[code]
	return ok
}

func (r *Registry) hasCurrency(code string) bool {
	_, ok := r.currencies[code]
	return ok
}

// LookupCountry returns a copy of the country config. Absence is not an error.
func (r *Registry) LookupCountry(code string) (Country, bool) {
	c, ok := r.countries[normalize(code)]
	if !ok {
		return Country{}, false
	}
	return c.clone(), true
}

func (r *Registry) LookupCurrency(code string) (Currency, bool) {
	c, ok := r.currencies[normalize(code)]
	return c, ok
}

func (r *Registry) Countries() []Country {
	out := make([]Country, 0, len(r.countryOrder))
	for _, code := range r.countryOrder {
		out = append(out, r.countries[code].clone())
	}
	return out
}

func (r *Registry) Currencies() []Currency {
	out := make([]Currency, 0, len(r.currencyOrder))
	for _, code := range r.currencyOrder {
		out = append(out, r.currencies[code])
	}
	return out
}

// PhoneRule returns the compiled phone pattern for a country, or nil when the
// country has none.
func (r *Registry) PhoneRule(country string) *regexp.Regexp {
	return r.phoneRules[normalize(country)]
}

// AvailableMethods lists the methods offered in a country, falling back to
// card-only when the country is unknown or lists none.
func (r *Registry) AvailableMethods(country string) []PaymentMethod {
	c, ok := r.countries[normalize(country)]
	if !ok || len(c.Methods) == 0 {
		return []PaymentMethod{MethodCard}
	}
	return slices.Clone(c.Methods)
}

// ConvertToSubunit multiplies by the currency's subunit factor and rounds.
func (r *Registry) ConvertToSubunit(amount decimal.Decimal, currency string) int64 {
	cur, ok := r.LookupCurrency(currency)
	if !ok {
		cur = Currency{SubunitFactor: DefaultSubunitFactor}
	}
	return cur.ToSubunit(amount)
}

func (r *Registry) FromSubunit(n int64, currency string) decimal.Decimal {
	cur, ok := r.LookupCurrency(currency)
	if !ok {
		cur = Currency{SubunitFactor: DefaultSubunitFactor}
	}
	return cur.FromSubunit(n)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
