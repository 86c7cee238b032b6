package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/tournament-settlement/middleware"
	"github.com/Dosada05/tournament-settlement/services"
)

type CancellationHandler struct {
	cancellationService *services.CancellationService
}

func NewCancellationHandler(cs *services.CancellationService) *CancellationHandler {
	return &CancellationHandler{cancellationService: cs}
}

// AssessRisk обрабатывает GET /tournaments/{tournamentID}/cancellation-risk
func (h *CancellationHandler) AssessRisk(w http.ResponseWriter, r *http.Request) {
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

	assessment, err := h.cancellationService.AssessRisk(r.Context(), actor, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"assessment": assessment}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Cancel обрабатывает POST /tournaments/{tournamentID}/cancel.
// A fan-out that failed part-way still answers 202: the tournament is
// cancelled and the rest is retried in the background.
func (h *CancellationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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

	var input services.CancelInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.cancellationService.CancelTournament(r.Context(), actor, tournamentID, input)
	switch {
	case err == nil:
		err = writeJSON(w, http.StatusOK, jsonResponse{"cancellation": result}, nil)
	case errors.Is(err, services.ErrPartialFailure) && result != nil:
		err = writeJSON(w, http.StatusAccepted, jsonResponse{"cancellation": result, "warning": err.Error()}, nil)
	default:
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResumeFanOut обрабатывает POST /admin/tournaments/{tournamentID}/cancellation/fanout
func (h *CancellationHandler) ResumeFanOut(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.cancellationService.RunFanOut(r.Context(), actor, tournamentID)
	switch {
	case err == nil:
		err = writeJSON(w, http.StatusOK, jsonResponse{"fan_out": result}, nil)
	case errors.Is(err, services.ErrPartialFailure) && result != nil:
		err = writeJSON(w, http.StatusAccepted, jsonResponse{"fan_out": result, "warning": err.Error()}, nil)
	default:
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}
