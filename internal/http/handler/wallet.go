package handler

import (
	"context"
	"net/http"

	"partnerd/internal/auth"
	"partnerd/internal/wallet"
)

type WalletStore interface {
	Balance(ctx context.Context, partnerID string) (wallet.Balance, error)
	Withdraw(ctx context.Context, partnerID string, amount int64) (wallet.Withdrawal, error)
	Withdrawals(ctx context.Context, partnerID string, limit int) ([]wallet.Withdrawal, error)
}

type WalletHandler struct {
	Repo WalletStore
}

type walletDTO struct {
	wallet.Balance
	MinWithdrawal int64               `json:"min_withdrawal"`
	Withdrawals   []wallet.Withdrawal `json:"withdrawals"`
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	pid := auth.PartnerIDFromContext(r.Context())
	b, err := h.Repo.Balance(r.Context(), pid)
	if err != nil {
		writeError(w, err)
		return
	}
	ws, err := h.Repo.Withdrawals(r.Context(), pid, 20)
	if err != nil {
		writeError(w, err)
		return
	}
	if ws == nil {
		ws = []wallet.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, walletDTO{Balance: b, MinWithdrawal: wallet.MinWithdrawal, Withdrawals: ws})
}

type withdrawReq struct {
	Amount int64 `json:"amount" validate:"gte=0"` // 0 withdraws everything
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawReq
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	out, err := h.Repo.Withdraw(r.Context(), auth.PartnerIDFromContext(r.Context()), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
