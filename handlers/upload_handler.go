package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Dosada05/tournament-settlement/middleware"
	"github.com/Dosada05/tournament-settlement/storage"
)

const maxUploadBytes = 5 << 20 // 5MB

// UploadHandler принимает изображения-подтверждения и возвращает ключ объекта.
type UploadHandler struct {
	proofs *storage.ProofStore
}

func NewUploadHandler(proofs *storage.ProofStore) *UploadHandler {
	return &UploadHandler{proofs: proofs}
}

// UploadPaymentProof handles POST /uploads/payment-proof (multipart field "file").
func (h *UploadHandler) UploadPaymentProof(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, storage.ProofPayment)
}

// UploadRefundQR handles POST /uploads/refund-qr (multipart field "file").
func (h *UploadHandler) UploadRefundQR(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, storage.ProofRefundQR)
}

func (h *UploadHandler) upload(w http.ResponseWriter, r *http.Request, kind storage.ProofKind) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	file, contentType, err := readUpload(w, r, "file")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	result, err := h.proofs.Save(r.Context(), kind, userID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"upload": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readUpload достаёт файл из multipart-формы вместе с его Content-Type.
func readUpload(w http.ResponseWriter, r *http.Request, field string) (multipart.File, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			return nil, "", fmt.Errorf("file must not be larger than %d bytes", maxUploadBytes)
		}
		return nil, "", fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("form field %q: %w", field, err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		file.Close()
		return nil, "", errors.New("content type required")
	}
	return file, contentType, nil
}
