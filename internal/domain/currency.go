package domain

type Currency struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
}

// SupportedCurrencies is the registry accounts may be denominated in.
var SupportedCurrencies = map[string]Currency{
	"NGN": {Name: "Nigerian Naira", Code: "NGN", Symbol: "₦"},
	"USD": {Name: "US Dollar", Code: "USD", Symbol: "$"},
}
