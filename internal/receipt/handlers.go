package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/receipt-ocr/internal/normalize"
)

// maxUploadSize handles high-resolution phone photos
const maxUploadSize = int64(50 << 20)

const tooLargeMessage = "File is too large. Maximum size is 50MB. Please compress or resize your image."

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// upload is a receipt image read from a multipart form
type upload struct {
	userID      string
	filename    string
	contentType string
	data        []byte
}

// readUpload parses the multipart form. It writes the error response itself
// and returns false when the request is unusable.
func readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		message := "Error parsing form"
		if err.Error() == "http: request body too large" {
			message = tooLargeMessage
		}
		jsonError(w, message, http.StatusBadRequest)
		return nil, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		message := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			message = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, message, http.StatusBadRequest)
		return nil, false
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		jsonError(w, tooLargeMessage, http.StatusBadRequest)
		return nil, false
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return nil, false
	}

	return &upload{
		userID:      strings.TrimSpace(r.FormValue("user_id")),
		filename:    header.Filename,
		contentType: uploadContentType(header.Header.Get("Content-Type"), header.Filename),
		data:        data,
	}, true
}

// uploadContentType falls back to the file extension when the part has no type
func uploadContentType(contentType, filename string) string {
	if contentType == "" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// scanErrorStatus maps service errors from scanning to HTTP status codes
func scanErrorStatus(err error) int {
	if errors.Is(err, ErrScanFailed) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// handleScanReceipt runs OCR on an upload without saving the receipt
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	u, ok := readUpload(w, r)
	if !ok {
		return
	}

	receipt, err := s.service.ScanReceipt(r.Context(), u.userID, u.filename, u.data, u.contentType)
	if err != nil {
		slog.Error("Error scanning receipt", "filename", u.filename, "error", err)
		jsonError(w, err.Error(), scanErrorStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleUploadReceipt scans and saves an upload in one step
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	u, ok := readUpload(w, r)
	if !ok {
		return
	}

	receipt, err := s.service.ProcessReceipt(r.Context(), u.userID, u.filename, u.data, u.contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", u.filename, "error", err)
		jsonError(w, err.Error(), scanErrorStatus(err))
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleCreateReceipt saves a previously scanned receipt
func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var receipt Receipt
	if err := json.NewDecoder(r.Body).Decode(&receipt); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := s.service.CreateReceipt(&receipt)
	if err != nil {
		slog.Error("Error creating receipt", "id", receipt.ID, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, saved)
}

// parseFilter reads list filters from the query string
func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{
		UserID:    strings.TrimSpace(q.Get("user")),
		StoreName: strings.TrimSpace(q.Get("store")),
		From:      strings.TrimSpace(q.Get("from")),
		To:        strings.TrimSpace(q.Get("to")),
	}

	for _, value := range q["payment"] {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			method := normalize.PaymentMethod(part)
			switch method {
			case normalize.PaymentCash, normalize.PaymentCreditCard, normalize.PaymentOther:
				filter.PaymentMethods = append(filter.PaymentMethods, method)
			default:
				return Filter{}, fmt.Errorf("unknown payment method %q", part)
			}
		}
	}

	if filter.From != "" && !normalize.IsISODate(filter.From) {
		return Filter{}, fmt.Errorf("from must be YYYY-MM-DD")
	}
	if filter.To != "" && !normalize.IsISODate(filter.To) {
		return Filter{}, fmt.Errorf("to must be YYYY-MM-DD")
	}
	return filter, nil
}

// handleListReceipts returns the receipts matching the query filters
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipts, err := s.service.ListReceipts(filter)
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, receipts)
}

// handleReceiptTotals aggregates the receipts matching the query filters
func (s *Server) handleReceiptTotals(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	totals, err := s.service.Totals(filter)
	if err != nil {
		slog.Error("Error aggregating receipts", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, totals)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	receipt, err := s.service.GetReceipt(id)
	if err != nil {
		corsError(w, "Receipt not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile returns the file for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetReceiptFile(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Receipt ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteReceipt(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "Receipt not found", http.StatusNotFound)
			return
		}
		corsError(w, "Error deleting receipt", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteLatestReceipt deletes the newest receipt of the given user
func (s *Server) handleDeleteLatestReceipt(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		corsError(w, "User required", http.StatusBadRequest)
		return
	}

	receipt, err := s.service.DeleteLastReceipt(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			corsError(w, "No receipts found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting latest receipt", "user_id", userID, "error", err)
		corsError(w, "Error deleting receipt", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}
