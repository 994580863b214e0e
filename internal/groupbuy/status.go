package groupbuy

// ProductStatus is never stored. It is derived from the order count on every read.
type ProductStatus string

const (
	ProductActive    ProductStatus = "active"
	ProductCompleted ProductStatus = "completed"
)

// DerivedStatus reports completed iff the group is full.
func DerivedStatus(currentOrders, groupSize int) ProductStatus {
	if currentOrders == groupSize {
		return ProductCompleted
	}
	return ProductActive
}

type OrderStatus string

const (
	OrderWaiting   OrderStatus = "waiting"
	OrderConfirmed OrderStatus = "confirmed"
	OrderDelivered OrderStatus = "delivered"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderWaiting:   {OrderConfirmed: true},
	OrderConfirmed: {OrderDelivered: true},
	OrderDelivered: {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}
