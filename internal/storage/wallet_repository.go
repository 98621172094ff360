package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// WalletRepository provides data access for wallets and their ledger.
type WalletRepository struct {
	BaseRepository
}

// NewWalletRepository creates a new wallet repository.
func NewWalletRepository(db *DB, clk clock.Clock) *WalletRepository {
	return &WalletRepository{BaseRepository: NewBaseRepository(db, clk)}
}

// GetByUserID retrieves a user's wallet, or nil if none exists yet.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	w := &models.Wallet{}
	err := r.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = ?
	`, userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying wallet: %w", err)
	}

	return w, nil
}

// Create inserts an empty wallet for userID. A wallet that already exists
// for the user yields ErrDuplicate.
func (r *WalletRepository) Create(ctx context.Context, userID string) (*models.Wallet, error) {
	now := r.Now()
	w := &models.Wallet{
		ID:        GenerateID(),
		UserID:    userID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.Conn(ctx).ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, w.ID, w.UserID, w.Balance, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("inserting wallet: %w", err)
	}

	return w, nil
}

// UpdateBalance overwrites the cached balance. Callers pair it with
// InsertTransaction in the same transaction.
func (r *WalletRepository) UpdateBalance(ctx context.Context, walletID string, balance decimal.Decimal) error {
	result, err := r.Conn(ctx).ExecContext(ctx, `
		UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?
	`, balance, r.Now(), walletID)
	if err != nil {
		return fmt.Errorf("updating wallet balance: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// InsertTransaction appends a ledger entry.
func (r *WalletRepository) InsertTransaction(ctx context.Context, t *models.WalletTransaction) error {
	t.ID = GenerateID()
	t.CreatedAt = r.Now()

	_, err := r.Conn(ctx).ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, amount, type, description, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.WalletID, t.Amount, t.Type, t.Description, t.BalanceAfter, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting wallet transaction: %w", err)
	}

	return nil
}

// ListTransactions returns a wallet's ledger, oldest first.
func (r *WalletRepository) ListTransactions(ctx context.Context, walletID string) ([]models.WalletTransaction, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, `
		SELECT id, wallet_id, amount, type, description, balance_after, created_at
		FROM wallet_transactions WHERE wallet_id = ?
		ORDER BY created_at, rowid
	`, walletID)
	if err != nil {
		return nil, fmt.Errorf("querying wallet transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Amount, &t.Type, &t.Description, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning wallet transaction: %w", err)
		}
		txs = append(txs, t)
	}

	return txs, rows.Err()
}
