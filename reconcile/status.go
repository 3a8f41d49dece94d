package reconcile

// OrderStatus is the externally visible order lifecycle.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// MapStatus translates a gateway payment status into the local order
// status. The mapping is total and deterministic: unknown or absent
// statuses resolve to pending instead of failing, and this table is the
// single source of truth for every call site.
func MapStatus(external string) OrderStatus {
	switch external {
	case "approved":
		return StatusPaid
	case "pending", "in_process", "in_mediation", "authorized":
		return StatusPending
	case "rejected", "cancelled", "refunded", "charged_back":
		return StatusCancelled
	default:
		return StatusPending
	}
}
