package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StockOutOfStock StockStatus = "out_of_stock"
	StockLow        StockStatus = "low_stock"
	StockOverstock  StockStatus = "overstock"
	StockInStock    StockStatus = "in_stock"
)

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

type Supplier struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone,omitempty"`
	Address Address `json:"address"`
}

type Product struct {
	ID               int64           `json:"id"`
	TenantID         int64           `json:"tenant_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Category         string          `json:"category"`
	SKU              string          `json:"sku"`
	Barcode          *string         `json:"barcode,omitempty"`
	Unit             string          `json:"unit"`
	CurrentStock     int             `json:"current_stock"`
	MinStockLevel    int             `json:"min_stock_level"`
	MaxStockLevel    int             `json:"max_stock_level"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	SellingPrice     decimal.Decimal `json:"selling_price"`
	ReorderQuantity  int             `json:"reorder_quantity"`
	MaxOrderQuantity int             `json:"max_order_quantity"`
	Supplier         Supplier        `json:"supplier"`
	IsActive         bool            `json:"is_active"`
	LastRestocked    *time.Time      `json:"last_restocked,omitempty"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Normalize applies the write-time rules shared by every product write:
// the SKU is stored upper-cased and maxOrderQuantity mirrors maxStockLevel.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.ToUpper(strings.TrimSpace(p.SKU))
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	p.Unit = strings.ToLower(strings.TrimSpace(p.Unit))
	p.Supplier.Name = strings.TrimSpace(p.Supplier.Name)
	p.Supplier.Email = strings.TrimSpace(p.Supplier.Email)
	if p.Barcode != nil {
		value := strings.TrimSpace(*p.Barcode)
		if value == "" {
			p.Barcode = nil
		} else {
			p.Barcode = &value
		}
	}
	p.MaxOrderQuantity = p.MaxStockLevel
}

type User struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// Actor identifies the authenticated caller of a request-driven operation.
type Actor struct {
	UserID   int64
	TenantID int64
}

type NotificationType string

const (
	NotificationLowStock       NotificationType = "low_stock"
	NotificationOutOfStock     NotificationType = "out_of_stock"
	NotificationPaymentPending NotificationType = "payment_pending"
	NotificationSystemAlert    NotificationType = "system_alert"
	NotificationOrderDelivered NotificationType = "order_delivered"
	NotificationOrderPlaced    NotificationType = "order_placed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Notification struct {
	ID          int64            `json:"id"`
	TenantID    int64            `json:"tenant_id"`
	RecipientID int64            `json:"recipient_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type"`
	Priority    Priority         `json:"priority"`
	Data        map[string]any   `json:"data,omitempty"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

type StockOverview struct {
	TotalProducts       int             `json:"total_products"`
	LowStockProducts    int             `json:"low_stock_products"`
	OutOfStockProducts  int             `json:"out_of_stock_products"`
	OverstockProducts   int             `json:"overstock_products"`
	TotalInventoryValue decimal.Decimal `json:"total_inventory_value"`
	TotalItems          int             `json:"total_items"`
}

type CategoryStats struct {
	Category      string          `json:"category"`
	Count         int             `json:"count"`
	TotalStock    int             `json:"total_stock"`
	TotalValue    decimal.Decimal `json:"total_value"`
	LowStockCount int             `json:"low_stock_count"`
}

type StockAnalytics struct {
	Overview   StockOverview   `json:"overview"`
	Categories []CategoryStats `json:"category_stats"`
}
