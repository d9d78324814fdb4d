// README: Pricing rate definition for each item size.
package pricing

import "errors"

type ItemSize string

const (
	ItemSmall  ItemSize = "small"
	ItemMedium ItemSize = "medium"
	ItemLarge  ItemSize = "large"
)

// Rate amounts are in cents.
type Rate struct {
	ItemSize ItemSize
	BaseFare int64
	PerKm    int64
	Currency string
}

type QuoteRequest struct {
	DistanceKm float64
	ItemSize   ItemSize
}

var (
	ErrUnknownSize = errors.New("unknown item size")
	ErrNoRate      = errors.New("no rate configured")
)

var defaultRates = map[ItemSize]Rate{
	ItemSmall:  {ItemSize: ItemSmall, BaseFare: 3500, PerKm: 700, Currency: "ZAR"},
	ItemMedium: {ItemSize: ItemMedium, BaseFare: 5500, PerKm: 900, Currency: "ZAR"},
	ItemLarge:  {ItemSize: ItemLarge, BaseFare: 9500, PerKm: 1200, Currency: "ZAR"},
}
