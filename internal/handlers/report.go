package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vhqtran/coingains/internal/models"
)

// ReportHandler serves the completed run read-only over HTTP. The result
// is computed once before the server starts; there is no mutation
// surface.
type ReportHandler struct {
	result *models.RunResult
}

// NewReportHandler wraps a finished run.
func NewReportHandler(result *models.RunResult) *ReportHandler {
	return &ReportHandler{result: result}
}

// Router builds the serve-mode route table.
func (h *ReportHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")
	r.HandleFunc("/api/snapshot", h.HandleSnapshot).Methods("GET")
	r.HandleFunc("/api/disposals", h.HandleDisposals).Methods("GET")
	r.HandleFunc("/api/transfers", h.HandleTransfers).Methods("GET")
	r.HandleFunc("/api/inventories", h.HandleInventories).Methods("GET")
	r.HandleFunc("/api/inventories/{account}", h.HandleInventory).Methods("GET")
	return r
}

// HandleHealth handles GET /health
func (h *ReportHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// HandleSnapshot handles GET /api/snapshot
func (h *ReportHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.result.Snapshot)
}

// HandleDisposals handles GET /api/disposals
func (h *ReportHandler) HandleDisposals(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	disposals := h.result.Disposals
	if disposals == nil {
		disposals = []*models.DisposalEvent{}
	}
	json.NewEncoder(w).Encode(disposals)
}

// HandleTransfers handles GET /api/transfers
func (h *ReportHandler) HandleTransfers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	transfers := h.result.Transfers
	if transfers == nil {
		transfers = []*models.TransferPair{}
	}
	json.NewEncoder(w).Encode(transfers)
}

// HandleInventories handles GET /api/inventories
func (h *ReportHandler) HandleInventories(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.result.Inventories)
}

// HandleInventory handles GET /api/inventories/{account}
func (h *ReportHandler) HandleInventory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	account := mux.Vars(r)["account"]
	lots, ok := h.result.Inventories[account]
	if !ok {
		http.Error(w, "unknown account", http.StatusNotFound)
		return
	}
	if lots == nil {
		lots = []*models.Lot{}
	}
	json.NewEncoder(w).Encode(lots)
}
