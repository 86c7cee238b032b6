package handlers

import (
	"net/http"
	"strconv"

	"github.com/Dosada05/tournament-settlement/middleware"
	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/services"
)

type PayoutHandler struct {
	payoutService *services.PayoutService
}

func NewPayoutHandler(ps *services.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutService: ps}
}

type markInstallmentInput struct {
	Notes *string `json:"notes,omitempty"`
}

// GetLedger обрабатывает GET /tournaments/{tournamentID}/payments
func (h *PayoutHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetActorFromContext(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ledger, err := h.payoutService.GetLedger(r.Context(), actor, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"payment": ledger}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MarkInstallmentPaid обрабатывает POST /tournaments/{tournamentID}/payments/installments/{index}/paid
func (h *PayoutHandler) MarkInstallmentPaid(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetActorFromContext(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	index, err := strconv.Atoi(chiParam(r, "index"))
	if err != nil {
		failedValidationResponse(w, r, map[string]string{"installment": "must be 1 or 2"})
		return
	}

	var input markInstallmentInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ledger, err := h.payoutService.MarkInstallmentPaid(r.Context(), actor, tournamentID, index, input.Notes)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"payment": ledger}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListPending обрабатывает GET /admin/payouts/pending?installment=1|2|all
func (h *PayoutHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	filter := parseInstallmentFilter(r.URL.Query().Get("installment"))

	result, err := h.payoutService.GetPendingPayouts(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func parseInstallmentFilter(raw string) models.InstallmentFilter {
	switch raw {
	case "1":
		return models.FilterInstallment1
	case "2":
		return models.FilterInstallment2
	}
	return models.InstallmentFilter(raw)
}
