package registry

// MethodInfo is the display text for a payment method.
type MethodInfo struct {
	Method      PaymentMethod `json:"method"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
}

var methodInfo = map[PaymentMethod]MethodInfo{
	MethodCard: {
		Method:      MethodCard,
		Name:        "Card Payment",
		Description: "Pay with your debit or credit card",
	},
	MethodMobileMoney: {
		Method:      MethodMobileMoney,
		Name:        "Mobile Money",
		Description: "Pay with mobile money (MTN, Vodafone, M-Pesa, etc.)",
	},
	MethodBankTransfer: {
		Method:      MethodBankTransfer,
		Name:        "Bank Transfer",
		Description: "Transfer directly from your bank account",
	},
	MethodUSSD: {
		Method:      MethodUSSD,
		Name:        "USSD Payment",
		Description: "Pay using USSD codes on your mobile phone",
	},
	MethodQR: {
		Method:      MethodQR,
		Name:        "QR Code",
		Description: "Scan QR code to complete payment",
	},
	MethodEFT: {
		Method:      MethodEFT,
		Name:        "Electronic Funds Transfer",
		Description: "Electronic bank transfer",
	},
}

func knownMethod(m PaymentMethod) bool {
	_, ok := methodInfo[m]
	return ok
}

// DescribeMethod returns display text for m. Unknown methods are described by
// their raw name.
func DescribeMethod(m PaymentMethod) MethodInfo {
	if info, ok := methodInfo[m]; ok {
		return info
	}
	return MethodInfo{Method: m, Name: string(m)}
}

// DefaultProviderInstructions is shown when a provider has no instructions.
const DefaultProviderInstructions = "Follow the prompts on your mobile device to complete payment"
