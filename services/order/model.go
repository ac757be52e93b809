package order

import "time"

// Order is the slice of the commerce order this subsystem needs: ownership,
// store attribution and the value cashback is computed from.
type Order struct {
	ID          string    `gorm:"column:id;primaryKey"`
	UserID      string    `gorm:"column:user_id;index"`
	OrderNumber string    `gorm:"column:order_number"`
	StoreID     string    `gorm:"column:store_id"`
	MerchantID  string    `gorm:"column:merchant_id"`
	Subtotal    int64     `gorm:"column:subtotal"`
	Total       int64     `gorm:"column:total"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (Order) TableName() string {
	return "orders"
}
