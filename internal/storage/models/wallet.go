package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a user's refundable balance. One per user.
type Wallet struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// WalletTransaction is an append-only ledger entry. Every balance change
// writes exactly one.
type WalletTransaction struct {
	ID           string          `json:"id"`
	WalletID     string          `json:"walletId"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Description  *string         `json:"description,omitempty"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Wallet transaction types
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)
