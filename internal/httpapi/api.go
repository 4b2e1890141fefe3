package httpapi

import (
	"pairduel/internal/matchmaker"
	"pairduel/internal/session"
	"pairduel/internal/store"
	"pairduel/internal/wallet"
)

// API exposes the player-facing routes: queue membership, wallet reads, live
// session play, and the two event streams. Public registration and the admin
// surface stay with the binary.
type API struct {
	Store    *store.Store
	Wallet   *wallet.Service
	Registry *session.Registry
	Match    *matchmaker.Service
}

func New(st *store.Store, w *wallet.Service, reg *session.Registry, match *matchmaker.Service) *API {
	return &API{Store: st, Wallet: w, Registry: reg, Match: match}
}
