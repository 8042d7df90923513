package handler

import (
	"net/http"

	"partnerd/internal/auth"
)

type MeHandler struct{}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"partner_id": c.PartnerID,
		"status":     c.Status,
	})
}
