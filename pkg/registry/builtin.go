package registry

import "github.com/shopspring/decimal"

// Builtin returns the registry compiled into the binary.
func Builtin() (*Registry, error) {
	return New(builtinCountries(), builtinCurrencies())
}

// MustBuiltin is Builtin for package-level initialisation; it panics if the
// compiled-in tables are inconsistent.
func MustBuiltin() *Registry {
	r, err := Builtin()
	if err != nil {
		panic(err)
	}
	return r
}

// Test cards understood by the gateway in test mode.
var TestCards = map[string]string{
	"successful":         "4084084084084408",
	"declined":           "4084084084084416",
	"insufficient_funds": "4084084084084424",
	"invalid_pin":        "4084084084084432",
	"timeout":            "4084084084084440",
}

// USSDInstructions is shown beneath a bank's dial string.
const USSDInstructions = "Dial the code on your registered phone, replacing Amount with the payment amount and Account with the provided account number"

func builtinCountries() []Country {
	return []Country{
		{
			Code:      "NG",
			Name:      "Nigeria",
			Currency:  "NGN",
			PhoneCode: "+234",
			Methods:   []PaymentMethod{MethodCard, MethodBankTransfer, MethodUSSD, MethodQR},
			Banks: []Bank{
				{Code: "044", Name: "Access Bank"},
				{Code: "014", Name: "Afribank"},
				{Code: "023", Name: "Citibank"},
				{Code: "050", Name: "Ecobank"},
				{Code: "011", Name: "First Bank"},
				{Code: "070", Name: "Fidelity Bank"},
				{Code: "058", Name: "Guaranty Trust Bank"},
				{Code: "030", Name: "Heritage Bank"},
				{Code: "082", Name: "Keystone Bank"},
				{Code: "076", Name: "Polaris Bank"},
				{Code: "039", Name: "Stanbic IBTC"},
				{Code: "232", Name: "Sterling Bank"},
				{Code: "032", Name: "Union Bank"},
				{Code: "033", Name: "United Bank for Africa"},
				{Code: "035", Name: "Wema Bank"},
				{Code: "057", Name: "Zenith Bank"},
			},
			USSDCodes: []USSDCode{
				{BankCode: "access", BankName: "Access Bank", Template: "*901*Amount*Account#"},
				{BankCode: "gtb", BankName: "GTBank", Template: "*737*Amount*Account#"},
				{BankCode: "firstbank", BankName: "First Bank", Template: "*894*Amount*Account#"},
				{BankCode: "zenith", BankName: "Zenith Bank", Template: "*966*Amount*Account#"},
				{BankCode: "uba", BankName: "UBA", Template: "*919*Amount*Account#"},
			},
			PhonePattern: `^(\+234|234|0)[789][01]\d{8}$`,
		},
		{
			Code:      "GH",
			Name:      "Ghana",
			Currency:  "GHS",
			PhoneCode: "+233",
			Methods:   []PaymentMethod{MethodCard, MethodMobileMoney, MethodBankTransfer},
			MobileMoneyProviders: []MobileMoneyProvider{
				{Code: "mtn", Name: "MTN Mobile Money", Prefixes: []string{"024", "025", "053", "054"},
					Instructions: "You will receive a prompt on your MTN mobile money registered phone to authorize this payment"},
				{Code: "vodafone", Name: "Vodafone Cash", Prefixes: []string{"020", "050"},
					Instructions: "Check your phone for Vodafone Cash payment authorization"},
				{Code: "airteltigo", Name: "AirtelTigo Money", Prefixes: []string{"027", "057", "026", "056"},
					Instructions: "You will receive an AirtelTigo Money payment request"},
			},
			Banks: []Bank{
				{Code: "absa", Name: "Absa Bank Ghana"},
				{Code: "access", Name: "Access Bank Ghana"},
				{Code: "agricdevelopment", Name: "Agricultural Development Bank"},
				{Code: "ecobank", Name: "Ecobank Ghana"},
				{Code: "fidelity", Name: "Fidelity Bank Ghana"},
				{Code: "gcb", Name: "GCB Bank"},
				{Code: "gtbank", Name: "Guaranty Trust Bank Ghana"},
				{Code: "stanbic", Name: "Stanbic Bank Ghana"},
			},
			PhonePattern: `^(\+233|233|0)[235][0-9]\d{7}$`,
		},
		{
			Code:      "KE",
			Name:      "Kenya",
			Currency:  "KES",
			PhoneCode: "+254",
			Methods:   []PaymentMethod{MethodCard, MethodMobileMoney, MethodBankTransfer},
			MobileMoneyProviders: []MobileMoneyProvider{
				{Code: "mpesa", Name: "M-Pesa", Prefixes: []string{"070", "071", "072", "074", "075", "076", "077", "078"},
					Instructions: "Check your phone for M-Pesa STK push notification"},
				{Code: "airtel", Name: "Airtel Money", Prefixes: []string{"073", "078"},
					Instructions: "You will receive an Airtel Money payment request"},
				{Code: "tkash", Name: "T-Kash", Prefixes: []string{"074"},
					Instructions: "Check your phone for T-Kash payment authorization"},
			},
			Banks: []Bank{
				{Code: "kcb", Name: "Kenya Commercial Bank"},
				{Code: "equity", Name: "Equity Bank"},
				{Code: "cooperative", Name: "Cooperative Bank"},
				{Code: "absa", Name: "Absa Bank Kenya"},
				{Code: "stanbic", Name: "Stanbic Bank Kenya"},
				{Code: "standard_chartered", Name: "Standard Chartered"},
			},
			PhonePattern: `^(\+254|254|0)[17]\d{8}$`,
		},
		{
			Code:      "ZA",
			Name:      "South Africa",
			Currency:  "ZAR",
			PhoneCode: "+27",
			Methods:   []PaymentMethod{MethodCard, MethodEFT, MethodMobileMoney},
			MobileMoneyProviders: []MobileMoneyProvider{
				{Code: "mtn", Name: "MTN Mobile Money", Prefixes: []string{"083", "084"},
					Instructions: "You will receive a prompt on your MTN mobile money registered phone to authorize this payment"},
			},
			Banks: []Bank{
				{Code: "absa", Name: "Absa Bank"},
				{Code: "fnb", Name: "First National Bank"},
				{Code: "standard_bank", Name: "Standard Bank"},
				{Code: "nedbank", Name: "Nedbank"},
				{Code: "capitec", Name: "Capitec Bank"},
				{Code: "investec", Name: "Investec Bank"},
			},
			PhonePattern: `^(\+27|27|0)[67]\d{8}$`,
		},
		{Code: "US", Name: "United States", Currency: "USD", PhoneCode: "+1", Methods: []PaymentMethod{MethodCard}},
		{Code: "GB", Name: "United Kingdom", Currency: "GBP", PhoneCode: "+44", Methods: []PaymentMethod{MethodCard}},
		{Code: "EU", Name: "European Union", Currency: "EUR", PhoneCode: "+", Methods: []PaymentMethod{MethodCard}},
		{Code: "EG", Name: "Egypt", Currency: "EGP", PhoneCode: "+20", Methods: []PaymentMethod{MethodCard}},
	}
}

func builtinCurrencies() []Currency {
	c := func(code, name, symbol string, decimals int32, min, max, factor int64) Currency {
		return Currency{
			Code:          code,
			Name:          name,
			Symbol:        symbol,
			Decimals:      decimals,
			MinAmount:     decimal.NewFromInt(min),
			MaxAmount:     decimal.NewFromInt(max),
			SubunitFactor: factor,
		}
	}
	return []Currency{
		c("NGN", "Nigerian Naira", "₦", 2, 100, 500000000, 100),
		c("USD", "US Dollar", "$", 2, 1, 100000, 100),
		c("GHS", "Ghanaian Cedi", "₵", 2, 1, 500000, 100),
		c("ZAR", "South African Rand", "R", 2, 1, 100000, 100),
		c("KES", "Kenyan Shilling", "KSh", 2, 1, 1000000, 100),
		c("EUR", "Euro", "€", 2, 1, 100000, 100),
		c("GBP", "British Pound", "£", 2, 1, 100000, 100),
		c("XOF", "West African CFA Franc", "CFA", 0, 100, 10000000, 1),
		c("EGP", "Egyptian Pound", "E£", 2, 1, 100000, 100),
	}
}
