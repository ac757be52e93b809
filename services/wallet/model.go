package wallet

import "time"

// Wallet balances only ever grow under crediting; total >= available holds
// because both are incremented together and debits live outside this
// subsystem.
type Wallet struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id;uniqueIndex"`
	Available int64     `gorm:"column:available"`
	Total     int64     `gorm:"column:total"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// WalletEntry records one credit. The unique claim_id index is the
// store-level at-most-once guarantee: a second credit attempt for the same
// claim fails deterministically inside its transaction.
type WalletEntry struct {
	ID        string    `gorm:"column:id;primaryKey"`
	WalletID  string    `gorm:"column:wallet_id;index"`
	UserID    string    `gorm:"column:user_id;index"`
	ClaimID   string    `gorm:"column:claim_id;uniqueIndex"`
	Amount    int64     `gorm:"column:amount"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (WalletEntry) TableName() string {
	return "wallet_entries"
}
