package handler

import (
	"net/http"

	"partnerd/internal/assign"
	"partnerd/internal/auth"
	"partnerd/internal/duty"
)

type DutyHandler struct {
	Stores *assign.Registry
	Roster *duty.Roster
}

type dutyDTO struct {
	Online       bool `json:"online"`
	CanGoOffline bool `json:"can_go_offline"`
}

func (h *DutyHandler) Get(w http.ResponseWriter, r *http.Request) {
	pid := auth.PartnerIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, dutyDTO{
		Online:       h.Roster.Online(pid),
		CanGoOffline: h.Stores.Store(pid).CanGoOffline(),
	})
}

type dutyReq struct {
	Online *bool `json:"online" validate:"required"`
}

func (h *DutyHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req dutyReq
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	pid := auth.PartnerIDFromContext(r.Context())
	s := h.Stores.Store(pid)
	if err := h.Roster.Set(pid, *req.Online, s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dutyDTO{Online: h.Roster.Online(pid), CanGoOffline: s.CanGoOffline()})
}
