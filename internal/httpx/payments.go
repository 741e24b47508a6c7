package httpx

import (
	"net/http"

	"clarte-be/internal/auth"
	"clarte-be/internal/payment"
)

type PaymentsHandler struct {
	svc payment.Service
}

func NewPaymentsHandler(svc payment.Service) *PaymentsHandler {
	return &PaymentsHandler{svc: svc}
}

func (h *PaymentsHandler) CreatePreference(w http.ResponseWriter, r *http.Request) {
	var in payment.PreferenceInput
	if err := DecodeJSON(w, r, &in); err != nil {
		Error(w, r, err)
		return
	}
	in.UserID = auth.UserID(r.Context())

	res, err := h.svc.CreatePreference(r.Context(), in)
	if err != nil {
		Error(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, res)
}

func (h *PaymentsHandler) ChargeCard(w http.ResponseWriter, r *http.Request) {
	var in payment.CardInput
	if err := DecodeJSON(w, r, &in); err != nil {
		Error(w, r, err)
		return
	}
	in.UserID = auth.UserID(r.Context())

	res, err := h.svc.ChargeCard(r.Context(), in)
	if err != nil {
		Error(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}
