package groupbuy

import (
	"strings"

	"github.com/shopspring/decimal"
)

const MinGroupSize = 2

// PriceScale is the number of decimal places a price may carry; the
// products table stores NUMERIC(14,2).
const PriceScale = 2

// MaxPrice is the first price the products table cannot hold.
var MaxPrice = decimal.New(1, 12)

// ComputeTotal returns price * quantity.
func ComputeTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// Normalize trims the input and fills defaults. It does not validate.
func (in ProductInput) Normalize() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Image = strings.TrimSpace(in.Image)
	in.Deadline = strings.TrimSpace(in.Deadline)
	if in.Image == "" {
		in.Image = DefaultImage
	}
	return in
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "required")
	}
	if !in.Price.IsPositive() {
		return invalid("price", "must be greater than zero")
	}
	if !in.Price.Equal(in.Price.Truncate(PriceScale)) {
		return invalid("price", "must have at most 2 decimal places")
	}
	if in.Price.GreaterThanOrEqual(MaxPrice) {
		return invalid("price", "is too large")
	}
	if in.GroupSize < MinGroupSize {
		return invalid("group_size", "must be at least 2")
	}
	return nil
}
