package httpserver

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/book"
)

// BooksHandler serves live book snapshots out of a mirror.
type BooksHandler struct {
	mirror *book.Mirror
	logger *zap.Logger
}

// NewBooksHandler creates a new books handler.
func NewBooksHandler(mirror *book.Mirror, logger *zap.Logger) *BooksHandler {
	return &BooksHandler{
		mirror: mirror,
		logger: logger,
	}
}

// BooksResponse represents the HTTP response for the full book list.
type BooksResponse struct {
	Count int             `json:"count"`
	Books []book.Snapshot `json:"books"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleBooks handles GET /books requests.
func (h *BooksHandler) HandleBooks(w http.ResponseWriter, r *http.Request) {
	all := h.mirror.All()

	books := make([]book.Snapshot, 0, len(all))
	for _, snap := range all {
		books = append(books, snap)
	}
	sort.Slice(books, func(i, j int) bool {
		return books[i].AssetID < books[j].AssetID
	})

	h.writeJSON(w, http.StatusOK, BooksResponse{Count: len(books), Books: books})
}

// HandleBook handles GET /books/{asset_id} requests.
func (h *BooksHandler) HandleBook(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	h.logger.Debug("book-request-received", zap.String("asset-id", assetID))

	snap, exists := h.mirror.Get(assetID)
	if !exists {
		h.writeError(w, "no book for asset", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, snap)
}

func (h *BooksHandler) writeJSON(w http.ResponseWriter, statusCode int, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *BooksHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
