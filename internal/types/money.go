// README: Common money value object used across modules.
package types

import "fmt"

// CurrencyZAR is the only currency the marketplace settles in.
const CurrencyZAR = "ZAR"

// Money is an amount in minor units (cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// FromCents returns a ZAR amount of cents, e.g. FromCents(1250) is R12.50.
func FromCents(cents int64) Money {
	return Money{Amount: cents, Currency: CurrencyZAR}
}

func (m Money) String() string {
	sign := ""
	a := m.Amount
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, m.Currency, a/100, a%100)
}
