// Package wallet implements the per-user refund balance and its ledger.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/storage"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// Ledger credits wallets and keeps the cached balance in step with the
// append-only transaction log. Calls made with a ctx carrying a storage
// transaction join it.
type Ledger struct {
	db      *storage.DB
	wallets *storage.WalletRepository
}

// NewLedger creates a ledger over the wallet repository.
func NewLedger(db *storage.DB, wallets *storage.WalletRepository) *Ledger {
	return &Ledger{db: db, wallets: wallets}
}

// GetOrCreate returns the user's wallet, creating an empty one on first
// access. A concurrent creator losing the unique race re-reads the winner's row.
func (l *Ledger) GetOrCreate(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := l.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		return w, nil
	}

	w, err = l.wallets.Create(ctx, userID)
	if errors.Is(err, storage.ErrDuplicate) {
		w, err = l.wallets.GetByUserID(ctx, userID)
		if err == nil && w == nil {
			err = fmt.Errorf("wallet for user %s vanished after duplicate insert", userID)
		}
	}
	if err != nil {
		return nil, err
	}

	return w, nil
}

// Credit adds amount to the user's wallet and appends the matching ledger
// entry in one transaction. amount must be positive.
func (l *Ledger) Credit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, apperror.Validation("credit amount must be positive", map[string]any{
			"amount": amount.String(),
		})
	}

	var out *models.Wallet
	err := l.db.Transaction(ctx, func(ctx context.Context) error {
		w, err := l.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		w.Balance = w.Balance.Add(amount)
		if err := l.wallets.UpdateBalance(ctx, w.ID, w.Balance); err != nil {
			return err
		}

		entry := &models.WalletTransaction{
			WalletID:     w.ID,
			Amount:       amount,
			Type:         models.TransactionCredit,
			BalanceAfter: w.Balance,
		}
		if description != "" {
			entry.Description = &description
		}
		if err := l.wallets.InsertTransaction(ctx, entry); err != nil {
			return err
		}

		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Statement is a wallet together with its ledger.
type Statement struct {
	Wallet       *models.Wallet             `json:"wallet"`
	Transactions []models.WalletTransaction `json:"transactions"`
}

// Statement returns the user's wallet and ledger, creating the wallet if needed.
func (l *Ledger) Statement(ctx context.Context, userID string) (*Statement, error) {
	w, err := l.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs, err := l.wallets.ListTransactions(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.WalletTransaction{}
	}

	return &Statement{Wallet: w, Transactions: txs}, nil
}

// LedgerBalance folds the ledger into a balance: credits minus debits.
func LedgerBalance(txs []models.WalletTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		switch t.Type {
		case models.TransactionCredit:
			total = total.Add(t.Amount)
		case models.TransactionDebit:
			total = total.Sub(t.Amount)
		}
	}
	return total
}
