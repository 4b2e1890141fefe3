package httpapi

import (
	"net/http"

	"pairduel/internal/store"
)

// BalanceHandler returns the caller's current balance.
func (a *API) BalanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		balance, err := a.Wallet.Balance(r.Context(), player.ID)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"player_id":    player.ID,
			"display_name": player.DisplayName,
			"balance_cc":   balance,
		})
	}
}

// HistoryHandler pages through the caller's ledger, newest first.
func (a *API) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		limit, offset := parsePagination(r)
		items, err := a.Wallet.History(r.Context(), store.LedgerFilter{OwnerID: player.ID}, limit, offset)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		out := make([]map[string]any, 0, len(items))
		for _, it := range items {
			out = append(out, map[string]any{
				"id":         it.ID,
				"type":       it.Type,
				"amount_cc":  it.AmountCC,
				"ref_type":   it.RefType,
				"ref_id":     it.RefID,
				"created_at": it.CreatedAt,
			})
		}
		writeJSON(w, map[string]any{
			"items":  out,
			"limit":  limit,
			"offset": offset,
		})
	}
}
