package checkout

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
	"github.com/Rohianon/multicurrency-checkout/pkg/validation"
)

// IntegrationType is sent in every payment's metadata.
const IntegrationType = "go_multi_currency"

// Field names used as FieldErrors keys.
const (
	FieldEmail               = "email"
	FieldName                = "name"
	FieldPhone               = "phone"
	FieldAmount              = "amount"
	FieldCountry             = "country"
	FieldMethod              = "payment_method"
	FieldMobileMoneyProvider = "mobile_money_provider"
	FieldMobileMoneyNumber   = "mobile_money_number"
	FieldBank                = "bank_code"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Form is what the payer fills in. Amount is kept as typed so that
// validation can report format errors.
type Form struct {
	Country             string                 `json:"country"`
	Currency            string                 `json:"currency"`
	Amount              string                 `json:"amount"`
	Method              registry.PaymentMethod `json:"payment_method"`
	Customer            Customer               `json:"customer"`
	MobileMoneyProvider string                 `json:"mobile_money_provider,omitempty"`
	BankCode            string                 `json:"bank_code,omitempty"`
	Metadata            map[string]any         `json:"metadata,omitempty"`
	TestMode            bool                   `json:"test_mode,omitempty"`
	OrderID             string                 `json:"order_id,omitempty"`
}

// FieldErrors maps a field name to its user-facing message.
type FieldErrors map[string]string

func (fe FieldErrors) Fields() []string {
	return slices.Sorted(maps.Keys(fe))
}

// ValidationError is returned by Submit when the form is rejected. The
// session is left untouched.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields.Fields() {
		parts = append(parts, f+": "+e.Fields[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// Validate returns every problem with the form; an empty result means it
// can be submitted.
func (f Form) Validate(v *validation.Validator) FieldErrors {
	_, errs := f.validate(v)
	return errs
}

func (f Form) validate(v *validation.Validator) (decimal.Decimal, FieldErrors) {
	errs := FieldErrors{}
	c := f.Customer

	switch {
	case c.Email == "":
		errs[FieldEmail] = "Email is required"
	case !v.ValidateEmail(c.Email):
		errs[FieldEmail] = "Please enter a valid email address"
	}

	if strings.TrimSpace(c.Name) == "" {
		errs[FieldName] = "Name is required"
	}

	switch {
	case c.Phone == "":
		errs[FieldPhone] = "Phone number is required"
	case !v.ValidatePhone(c.Phone, f.Country):
		errs[FieldPhone] = "Please enter a valid phone number"
	}

	amount, err := v.ValidateAmount(f.Amount, f.Currency)
	if err != nil {
		errs[FieldAmount] = err.Error()
	}

	reg := v.Registry()
	country, known := reg.LookupCountry(f.Country)
	method := f.Method
	if method == "" {
		method = registry.MethodCard
	}
	if !slices.Contains(reg.AvailableMethods(f.Country), method) {
		name := f.Country
		if known {
			name = country.Name
		}
		errs[FieldMethod] = fmt.Sprintf("%s is not available in %s", registry.DescribeMethod(method).Name, name)
	}

	switch method {
	case registry.MethodMobileMoney:
		if f.MobileMoneyProvider == "" {
			errs[FieldMobileMoneyProvider] = "Please select a mobile money provider"
			break
		}
		if _, bad := errs[FieldPhone]; bad || !known {
			break
		}
		local := v.NationalNumber(c.Phone, f.Country)
		if err := v.ValidateMobileMoneyNumber(local, f.MobileMoneyProvider, f.Country); err != nil {
			var verr *validation.Error
			if errors.As(err, &verr) && verr.Reason == validation.UnknownProvider {
				errs[FieldMobileMoneyProvider] = "Please select a mobile money provider"
			} else {
				errs[FieldMobileMoneyNumber] = err.Error()
			}
		}
	case registry.MethodBankTransfer:
		if _, ok := country.Bank(f.BankCode); f.BankCode == "" || (known && !ok) {
			errs[FieldBank] = "Please select your bank"
		}
	case registry.MethodUSSD:
		if _, ok := country.USSDCode(f.BankCode); f.BankCode == "" || (known && !ok) {
			errs[FieldBank] = "Please select your bank for USSD payment"
		}
	}

	return amount, errs
}

// Request builds the gateway payload for a validated form.
func (f Form) Request(v *validation.Validator) (*gateway.InitializeRequest, error) {
	amount, err := v.ValidateAmount(f.Amount, f.Currency)
	if err != nil {
		return nil, err
	}
	return f.request(v, amount), nil
}

func (f Form) request(v *validation.Validator, amount decimal.Decimal) *gateway.InitializeRequest {
	method := f.Method
	if method == "" {
		method = registry.MethodCard
	}

	metadata := maps.Clone(f.Metadata)
	if metadata == nil {
		metadata = make(map[string]any, 4)
	}
	metadata["selected_bank"] = f.BankCode
	metadata["integration_type"] = IntegrationType
	metadata["test_mode"] = f.TestMode
	if f.OrderID != "" {
		metadata["order_id"] = f.OrderID
	}

	req := &gateway.InitializeRequest{
		Email:               f.Customer.Email,
		Amount:              v.Registry().ConvertToSubunit(amount, f.Currency),
		Currency:            strings.ToUpper(f.Currency),
		PaymentMethod:       string(method),
		CustomerName:        strings.TrimSpace(f.Customer.Name),
		CustomerPhone:       f.Customer.Phone,
		CustomerCountry:     strings.ToUpper(f.Country),
		MobileMoneyProvider: f.MobileMoneyProvider,
		Metadata:            metadata,
	}
	if method == registry.MethodMobileMoney {
		req.MobileMoneyNumber = v.FormatPhoneNumber(f.Customer.Phone, f.Country)
	}
	return req
}
