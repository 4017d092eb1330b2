package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"dealdesk/pkg/analysis"
	"dealdesk/pkg/logger"
	"dealdesk/pkg/models"
	"dealdesk/pkg/store"
	"dealdesk/pkg/utils"
)

// RegisterAdmin registers admin-only routes onto the admin subrouter.
func RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/health", adminHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", adminStats).Methods(http.MethodGet)
	r.HandleFunc("/negotiations", adminListNegotiations).Methods(http.MethodGet)
	r.HandleFunc("/analysis", adminAnalysisStatus).Methods(http.MethodGet)
	logger.Info("admin_routes_registered")
}

func adminHealth(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok","service":"dealdesk"}`))
}

func adminStats(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	stats, err := store.CountStats()
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, stats)
}

// adminListNegotiations returns every negotiation regardless of
// participant scoping.
func adminListNegotiations(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	all, err := store.ListNegotiations()
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Negotiations []models.Negotiation `json:"negotiations"`
	}{Negotiations: all})
}

// adminAnalysisStatus reports analysis queue occupancy and drops.
func adminAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	q := analysis.DefaultQueue
	utils.JSONWrite(w, http.StatusOK, struct {
		Depth    int    `json:"depth"`
		Capacity int    `json:"capacity"`
		Dropped  uint64 `json:"dropped"`
	}{Depth: q.Len(), Capacity: q.Cap(), Dropped: q.Dropped()})
}
