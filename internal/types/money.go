// README: Common money value object used across modules.
package types

import "fmt"

// Money is an amount in the currency's smallest denomination.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}
