// README: 60/40 driver/platform split of a delivery fee, exact to the cent.
package payout

import (
	"errors"
	"fmt"

	"haulr/internal/types"
)

// Driver share in tenths of the fee. The platform keeps the remainder.
const driverShareTenths = 6

var ErrNegativeFee = errors.New("delivery fee must not be negative")

type Split struct {
	Driver   types.Money `json:"driver_payout"`
	Platform types.Money `json:"platform_fee"`
}

// SplitFee rounds the driver share half-to-even and gives the platform the
// difference, so Driver + Platform always equals fee.
func SplitFee(fee types.Money) (Split, error) {
	if fee.Amount < 0 {
		return Split{}, fmt.Errorf("%w: %s", ErrNegativeFee, fee)
	}
	driver := roundHalfEven(fee.Amount*driverShareTenths, 10)
	return Split{
		Driver:   types.Money{Amount: driver, Currency: fee.Currency},
		Platform: types.Money{Amount: fee.Amount - driver, Currency: fee.Currency},
	}, nil
}

// roundHalfEven divides n by d (both non-negative) and rounds ties to even.
func roundHalfEven(n, d int64) int64 {
	q, r := n/d, n%d
	switch {
	case 2*r > d:
		q++
	case 2*r == d && q%2 == 1:
		q++
	}
	return q
}
