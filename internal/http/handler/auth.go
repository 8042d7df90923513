package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"partnerd/internal/auth"
)

type AuthHandler struct {
	DB          *gorm.DB
	JWT         *auth.JWT
	AutoApprove bool
}

type registerReq struct {
	Phone    string `json:"phone" validate:"required,numeric,min=10,max=15"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginReq struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	p := auth.Partner{
		ID:           uuid.NewString(),
		Phone:        req.Phone,
		Name:         req.Name,
		PasswordHash: hash,
		Status:       auth.StatusPendingVerification,
	}
	if h.AutoApprove {
		p.Status = auth.StatusApproved
	}
	if err := h.DB.WithContext(r.Context()).Create(&p).Error; err != nil {
		http.Error(w, "phone already registered", http.StatusConflict)
		return
	}

	h.issue(w, p)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validate.Struct(req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	var p auth.Partner
	if err := h.DB.WithContext(r.Context()).Where("phone = ?", req.Phone).First(&p).Error; err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if !auth.ComparePassword(p.PasswordHash, req.Password) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	h.issue(w, p)
}

func (h *AuthHandler) issue(w http.ResponseWriter, p auth.Partner) {
	token, err := h.JWT.Sign(p.ID, p.Status)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":  token,
		"status": p.Status,
	})
}
