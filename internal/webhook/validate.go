package webhook

import "strings"

// Payload is the alert body sent by TradingView:
//
//	{"symbol": "{{ticker}}", "price": {{close}}, "atr": {{plot("ATR")}}}
//
// Price and ATR are pointers so a missing field is distinguishable from zero.
type Payload struct {
	Symbol string   `json:"symbol"`
	Price  *float64 `json:"price"`
	ATR    *float64 `json:"atr"`
}

// ValidationError rejects a payload; Detail is the client-facing reason.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// Validate checks a payload against the domain rules in order, first failure
// wins. It returns the trimmed symbol and the numeric values; nothing else is
// transformed. Everything downstream of here trusts the values.
func Validate(p Payload) (symbol string, price, atr float64, err error) {
	symbol = strings.TrimSpace(p.Symbol)
	if symbol == "" {
		return "", 0, 0, &ValidationError{Detail: "missing symbol"}
	}

	if p.Price == nil || *p.Price <= 0 {
		return "", 0, 0, &ValidationError{Detail: "invalid price"}
	}

	if p.ATR == nil || *p.ATR < 0 {
		return "", 0, 0, &ValidationError{Detail: "invalid atr"}
	}

	return symbol, *p.Price, *p.ATR, nil
}
