package domain

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether an order in this status is closed for edits.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentProcessing, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// PaymentChangeAllowed reports whether an order in status may move its
// payment from current to next. Closed orders accept only a refund of a
// completed payment.
func PaymentChangeAllowed(status OrderStatus, current, next PaymentStatus) bool {
	if !status.Terminal() {
		return true
	}
	return next == PaymentRefunded && current == PaymentCompleted
}

type OrderType string

const (
	OrderAutomatic OrderType = "automatic"
	OrderManual    OrderType = "manual"
)

type OrderSupplier struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

func SupplierRef(s Supplier) OrderSupplier {
	return OrderSupplier{Name: s.Name, Email: s.Email, Phone: s.Phone}
}

type OrderLine struct {
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type Order struct {
	ID                   int64           `json:"id"`
	TenantID             int64           `json:"tenant_id"`
	OrderNumber          string          `json:"order_number"`
	Lines                []OrderLine     `json:"products"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	Status               OrderStatus     `json:"status"`
	OrderType            OrderType       `json:"order_type"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	PaymentDate          *time.Time      `json:"payment_date,omitempty"`
	Supplier             OrderSupplier   `json:"supplier"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time      `json:"actual_delivery_date,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	CreatedBy            int64           `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Recalculate recomputes every line total and the order total. Stores call it
// before each save so totalAmount never drifts from its lines.
func (o *Order) Recalculate() {
	total := decimal.Zero
	for i := range o.Lines {
		line := &o.Lines[i]
		line.TotalPrice = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(line.TotalPrice)
	}
	o.TotalAmount = total
}

// NewOrderNumber returns "ORD-" + the last six digits of the millisecond
// timestamp + three random digits.
func NewOrderNumber(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ts) > 6 {
		ts = ts[len(ts)-6:]
	}
	return fmt.Sprintf("ORD-%s-%03d", ts, rand.IntN(1000))
}
