package checkout

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
	"github.com/Rohianon/multicurrency-checkout/pkg/validation"
)

const (
	TestEmail        = "test@example.com"
	TestCustomerName = "Test Customer"
	fallbackPhone    = "+1234567890"
)

var testPhones = map[string]string{
	"NG": "+2348012345678",
	"GH": "+233201234567",
	"KE": "+254701234567",
	"ZA": "+27821234567",
}

// TestPhone returns the sandbox phone number for a country.
func TestPhone(country string) string {
	if p, ok := testPhones[strings.ToUpper(country)]; ok {
		return p
	}
	return fallbackPhone
}

// Scenario is a canned sandbox payment.
type Scenario struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Method      registry.PaymentMethod `json:"payment_method"`
	Card        string                 `json:"card,omitempty"`
	// Available lists the countries the scenario runs in; empty means all.
	Available []string `json:"available,omitempty"`
}

var scenarios = []Scenario{
	{
		ID:          "successful_card",
		Name:        "Successful Card Payment",
		Description: "Test successful card payment flow",
		Method:      registry.MethodCard,
		Card:        registry.TestCards["successful"],
	},
	{
		ID:          "declined_card",
		Name:        "Declined Card Payment",
		Description: "Test declined card payment scenario",
		Method:      registry.MethodCard,
		Card:        registry.TestCards["declined"],
	},
	{
		ID:          "insufficient_funds",
		Name:        "Insufficient Funds",
		Description: "Test insufficient funds scenario",
		Method:      registry.MethodCard,
		Card:        registry.TestCards["insufficient_funds"],
	},
	{
		ID:          "mobile_money_success",
		Name:        "Mobile Money Payment",
		Description: "Test mobile money payment flow",
		Method:      registry.MethodMobileMoney,
		Available:   []string{"GH", "KE", "ZA"},
	},
	{
		ID:          "bank_transfer",
		Name:        "Bank Transfer",
		Description: "Test bank transfer payment",
		Method:      registry.MethodBankTransfer,
		Available:   []string{"NG", "GH", "KE", "ZA"},
	},
	{
		ID:          "ussd_payment",
		Name:        "USSD Payment",
		Description: "Test USSD payment flow",
		Method:      registry.MethodUSSD,
		Available:   []string{"NG"},
	},
}

func Scenarios() []Scenario {
	return slices.Clone(scenarios)
}

func LookupScenario(id string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

func (s Scenario) AvailableIn(country string) bool {
	return len(s.Available) == 0 || slices.Contains(s.Available, strings.ToUpper(country))
}

// Form builds the sandbox form for s. The provider or bank is picked from the
// country's tables; the form may still fail validation when the country's
// data makes the scenario impossible.
func (s Scenario) Form(v *validation.Validator, country, currency, amount string) (Form, error) {
	if !s.AvailableIn(country) {
		return Form{}, fmt.Errorf("scenario %s is not available in %s", s.ID, country)
	}

	f := Form{
		Country:  strings.ToUpper(country),
		Currency: strings.ToUpper(currency),
		Amount:   amount,
		Method:   s.Method,
		Customer: Customer{
			Name:  TestCustomerName,
			Email: TestEmail,
			Phone: TestPhone(country),
		},
		TestMode: true,
		Metadata: map[string]any{"test_scenario": s.ID},
	}
	if s.Card != "" {
		f.Metadata["test_card"] = s.Card
	}

	c, ok := v.Registry().LookupCountry(country)
	if !ok {
		return f, nil
	}

	switch s.Method {
	case registry.MethodMobileMoney:
		f.MobileMoneyProvider = pickProvider(v, c, f.Customer.Phone)
	case registry.MethodBankTransfer:
		if len(c.Banks) > 0 {
			f.BankCode = c.Banks[0].Code
		}
	case registry.MethodUSSD:
		if len(c.USSDCodes) > 0 {
			f.BankCode = c.USSDCodes[0].BankCode
		}
	}
	return f, nil
}

func pickProvider(v *validation.Validator, c registry.Country, phone string) string {
	if len(c.MobileMoneyProviders) == 0 {
		return ""
	}
	local := v.NationalNumber(phone, c.Code)
	for _, p := range c.MobileMoneyProviders {
		if v.ValidateMobileMoneyNumber(local, p.Code, c.Code) == nil {
			return p.Code
		}
	}
	return c.MobileMoneyProviders[0].Code
}
