package inventory

import "time"

type Category string

const (
	CategoryShoe     Category = "shoe"
	CategoryClothing Category = "clothing"
)

type Product struct {
	ID         string
	SKU        string
	Name       string
	Category   Category
	PriceCents int64
	Stock      int
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ItemQty: permintaan qty per product untuk satu attempt checkout.
type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ReservedLine struct {
	ProductID string
	Qty       int
	// harga dibekukan saat reserve; tidak pernah dihitung ulang
	UnitPriceCents int64
}

// Reservation is the ephemeral hold taken by one checkout attempt. It exists
// only between Reserve and Commit/Release; it is never a customer-visible
// object.
type Reservation struct {
	ID    string
	Lines []ReservedLine
}
