package domain

import "strings"

// Country is a storefront market the shopper may select.
type Country struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// SupportedCountries lists the selectable markets in display order.
var SupportedCountries = []Country{
	{Code: "IN", Label: "India"},
	{Code: "AE", Label: "United Arab Emirates (UAE)"},
	{Code: "SA", Label: "Saudi Arabia"},
	{Code: "QA", Label: "Qatar"},
	{Code: "KW", Label: "Kuwait"},
	{Code: "OM", Label: "Oman"},
	{Code: "BH", Label: "Bahrain"},
	{Code: "JO", Label: "Jordan"},
	{Code: "LB", Label: "Lebanon"},
	{Code: "EG", Label: "Egypt"},
	{Code: "IQ", Label: "Iraq"},
}

// LookupCountry finds a supported country by ISO code, case-insensitively.
func LookupCountry(code string) (Country, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range SupportedCountries {
		if c.Code == code {
			return c, true
		}
	}
	return Country{}, false
}
