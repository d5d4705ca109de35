package model

// Side is the direction of an executed order.
// Keep these values stable; they are intended for CSV output.
type Side string

const (
	SideBuy        Side = "BUY"
	SideSell       Side = "SELL"
	SideSellShort  Side = "SELL_SHORT"
	SideBuyToCover Side = "BUY_TO_COVER"
)

// Opens reports whether the side increases the absolute size of a position.
func (s Side) Opens() bool {
	return s == SideBuy || s == SideSellShort
}
