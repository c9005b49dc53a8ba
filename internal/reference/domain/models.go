// Package domain contains read-only reference data types.
package domain

// Bank is a settlement bank in the gateway's registry.
type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Currency describes a supported settlement currency.
type Currency struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	MinorUnit int16  `json:"minor_unit"`
}
