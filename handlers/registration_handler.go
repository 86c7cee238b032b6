package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-settlement/middleware"
	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/services"
	"github.com/Dosada05/tournament-settlement/storage"
)

type RegistrationHandler struct {
	registrationService *services.RegistrationService
	proofs              *storage.ProofStore
}

func NewRegistrationHandler(rs *services.RegistrationService, proofs *storage.ProofStore) *RegistrationHandler {
	return &RegistrationHandler{registrationService: rs, proofs: proofs}
}

type reasonInput struct {
	Reason string `json:"reason"`
}

type resolveCancellationInput struct {
	Decision models.CancellationDecision `json:"decision"`
	Reason   string                      `json:"reason"`
}

type completeRefundInput struct {
	ProofKey string `json:"proof_key"`
}

// Submit обрабатывает POST /tournaments/{tournamentID}/registrations
func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
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

	var input services.SubmitRegistrationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.TournamentID = tournamentID

	reg, err := h.registrationService.Submit(r.Context(), actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByID обрабатывает GET /registrations/{registrationID}
func (h *RegistrationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	h.withRegistration(w, r, http.StatusOK, func(ctx context.Context, actor models.Actor, id int) (*models.Registration, error) {
		return h.registrationService.Get(ctx, actor, id)
	})
}

// Confirm обрабатывает POST /registrations/{registrationID}/confirm
func (h *RegistrationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.withRegistration(w, r, http.StatusOK, func(ctx context.Context, actor models.Actor, id int) (*models.Registration, error) {
		return h.registrationService.Confirm(ctx, actor, id)
	})
}

// Reject обрабатывает POST /registrations/{registrationID}/reject
func (h *RegistrationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var input reasonInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.withRegistration(w, r, http.StatusOK, func(ctx context.Context, actor models.Actor, id int) (*models.Registration, error) {
		return h.registrationService.Reject(ctx, actor, id, input.Reason)
	})
}

// RequestCancellation обрабатывает POST /registrations/{registrationID}/cancellation
func (h *RegistrationHandler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	var input services.CancellationRequestInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.withRegistration(w, r, http.StatusOK, func(ctx context.Context, actor models.Actor, id int) (*models.Registration, error) {
		return h.registrationService.RequestCancellation(ctx, actor, id, input)
	})
}

// ResolveCancellation обрабатывает POST /registrations/{registrationID}/cancellation/resolve
func (h *RegistrationHandler) ResolveCancellation(w http.ResponseWriter, r *http.Request) {
	var input resolveCancellationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.withRegistration(w, r, http.StatusOK, func(ctx context.Context, actor models.Actor, id int) (*models.Registration, error) {
		return h.registrationService.ResolveCancellation(ctx, actor, id, input.Decision, input.Reason)
	})
}

// CompleteRefund обрабатывает POST /registrations/{registrationID}/refund/complete.
// Accepts either a multipart "proof" image or a JSON body with an already
// uploaded proof_key.
func (h *RegistrationHandler) CompleteRefund(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetActorFromContext(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var (
		proofKey string
		uploaded bool
	)
	if isMultipart(r) {
		file, contentType, err := readUpload(w, r, "proof")
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
		defer file.Close()
		result, err := h.proofs.Save(r.Context(), storage.ProofRefund, actor.UserID, contentType, file)
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		proofKey, uploaded = result.Key, true
	} else {
		var input completeRefundInput
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
		proofKey = input.ProofKey
	}

	reg, err := h.registrationService.CompleteRefund(r.Context(), actor, id, proofKey)
	if err != nil {
		if uploaded {
			if derr := h.proofs.Discard(context.WithoutCancel(r.Context()), proofKey); derr != nil {
				slog.Warn("failed to discard unused refund proof", slog.String("key", proofKey), slog.Any("error", derr))
			}
		}
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RegistrationHandler) withRegistration(w http.ResponseWriter, r *http.Request, status int, op func(ctx context.Context, actor models.Actor, id int) (*models.Registration, error)) {
	actor, err := middleware.GetActorFromContext(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	reg, err := op(r.Context(), actor, id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, status, jsonResponse{"registration": reg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
