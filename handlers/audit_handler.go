package handlers

import (
	"net/http"
	"strconv"

	"github.com/Dosada05/tournament-settlement/middleware"
	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/services"
)

type AuditHandler struct {
	auditService        *services.AuditService
	notificationService *services.NotificationService
}

func NewAuditHandler(as *services.AuditService, ns *services.NotificationService) *AuditHandler {
	return &AuditHandler{auditService: as, notificationService: ns}
}

// Trail обрабатывает GET /admin/audit/{entityType}/{entityID}
func (h *AuditHandler) Trail(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetActorFromContext(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	entityID, err := getIDFromURL(r, "entityID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	entityType := models.AuditEntityType(chiParam(r, "entityType"))

	trail, err := h.auditService.Trail(r.Context(), actor, entityType, entityID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"audit": trail}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MyNotifications обрабатывает GET /users/me/notifications?limit=N
func (h *AuditHandler) MyNotifications(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetActorFromContext(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			failedValidationResponse(w, r, map[string]string{"limit": "must be a non-negative integer"})
			return
		}
	}

	list, err := h.notificationService.ListMine(r.Context(), actor, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"notifications": list}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
