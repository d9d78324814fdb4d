package payout

import (
	"time"

	"haulr/internal/types"
)

// Record is the payout emitted to billing once per delivered delivery.
type Record struct {
	DeliveryID  types.ID    `json:"delivery_id"`
	DriverID    types.ID    `json:"driver_id"`
	Amount      types.Money `json:"amount"`
	PlatformFee types.Money `json:"platform_fee"`
	CreatedAt   time.Time   `json:"created_at"`
}

func NewRecord(deliveryID, driverID types.ID, fee types.Money, at time.Time) (Record, error) {
	split, err := SplitFee(fee)
	if err != nil {
		return Record{}, err
	}
	return Record{
		DeliveryID:  deliveryID,
		DriverID:    driverID,
		Amount:      split.Driver,
		PlatformFee: split.Platform,
		CreatedAt:   at.UTC(),
	}, nil
}
