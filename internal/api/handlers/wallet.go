package handlers

import (
	"net/http"

	"github.com/rental-marketplace/backend/internal/api/middleware"
	"github.com/rental-marketplace/backend/internal/wallet"
)

// GetWallet returns the caller's wallet and its transactions.
func GetWallet(ledger *wallet.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statement, err := ledger.Statement(r.Context(), middleware.CurrentUser(r.Context()).ID)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, statement)
	}
}
