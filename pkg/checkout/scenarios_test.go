package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rohianon/multicurrency-checkout/pkg/gateway/gatewaytest"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
)

func TestScenarioAvailability(t *testing.T) {
	ussd, ok := LookupScenario("ussd_payment")
	require.True(t, ok)
	assert.True(t, ussd.AvailableIn("ng"))
	assert.False(t, ussd.AvailableIn("GH"))

	card, _ := LookupScenario("successful_card")
	assert.True(t, card.AvailableIn("US"))

	_, ok = LookupScenario("nope")
	assert.False(t, ok)
	assert.Len(t, Scenarios(), 6)
}

func TestScenarioForms(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		scenario string
		country  string
		currency string
		amount   string
		want     Status
	}{
		{"successful_card", "NG", "NGN", "1000", StatusSuccess},
		{"declined_card", "NG", "NGN", "1000", StatusFailed},
		{"insufficient_funds", "KE", "KES", "1000", StatusFailed},
		{"mobile_money_success", "GH", "GHS", "100", StatusSuccess},
		{"mobile_money_success", "KE", "KES", "100", StatusSuccess},
		{"bank_transfer", "NG", "NGN", "1000", StatusSuccess},
		{"ussd_payment", "NG", "NGN", "1000", StatusSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.scenario+"/"+tt.country, func(t *testing.T) {
			sc, ok := LookupScenario(tt.scenario)
			require.True(t, ok)

			f, err := sc.Form(v, tt.country, tt.currency, tt.amount)
			require.NoError(t, err)
			require.Empty(t, f.Validate(v))

			o := NewOrchestrator(gatewaytest.New(), v)
			out, err := o.Submit(context.Background(), NewSession(), f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Status)
		})
	}
}

func TestScenarioPicksMatchingProvider(t *testing.T) {
	v := newValidator(t)

	sc, _ := LookupScenario("mobile_money_success")
	gh, err := sc.Form(v, "GH", "GHS", "100")
	require.NoError(t, err)
	assert.Equal(t, "vodafone", gh.MobileMoneyProvider)
	assert.Equal(t, TestEmail, gh.Customer.Email)
	assert.Equal(t, "+233201234567", gh.Customer.Phone)
	assert.True(t, gh.TestMode)

	ke, err := sc.Form(v, "KE", "KES", "100")
	require.NoError(t, err)
	assert.Equal(t, "mpesa", ke.MobileMoneyProvider)
}

func TestScenarioUnavailable(t *testing.T) {
	sc, _ := LookupScenario("ussd_payment")
	_, err := sc.Form(newValidator(t), "KE", "KES", "100")
	assert.Error(t, err)
}

func TestScenarioBankTransferInSouthAfrica(t *testing.T) {
	v := newValidator(t)
	sc, _ := LookupScenario("bank_transfer")

	f, err := sc.Form(v, "ZA", "ZAR", "100")
	require.NoError(t, err)
	assert.Contains(t, f.Validate(v), FieldMethod, "ZA offers EFT rather than bank transfer")
	assert.Equal(t, registry.MethodBankTransfer, f.Method)
}
