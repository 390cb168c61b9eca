package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"jigtrack/config"
	"jigtrack/repository"
	"jigtrack/storage"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/google/uuid"
)

// WebServer handles HTTP requests
type WebServer struct {
	httpAddr   string
	server     *http.Server
	logger     cmtlog.Logger
	startTime  time.Time
	repository *repository.Repository
	store      *storage.Manager
	cfg        *config.Config
}

// NewWebServer creates a new web server
func NewWebServer(httpPort string, logger cmtlog.Logger, repo *repository.Repository, store *storage.Manager, cfg *config.Config) *WebServer {
	mux := http.NewServeMux()

	server := &WebServer{
		httpAddr: ":" + httpPort,
		server: &http.Server{
			Addr:    ":" + httpPort,
			Handler: withRequestID(mux),
		},
		logger:     logger,
		startTime:  time.Now(),
		repository: repo,
		store:      store,
		cfg:        cfg,
	}

	// Register routes
	mux.HandleFunc("/healthz", server.handleHealth)
	mux.HandleFunc("/storage/status", server.handleStorageStatus)
	mux.HandleFunc("/technicians", server.handleTechnicians)
	mux.HandleFunc("/technicians/", server.handleTechnicianAPI)
	mux.HandleFunc("/jigs", server.handleJigs)
	mux.HandleFunc("/jigs/", server.handleJigAPI)
	mux.HandleFunc("/equipment/", server.handleEquipmentView)
	mux.HandleFunc("/validations", server.handleValidations)
	mux.HandleFunc("/adapters", server.handleAdapters)
	mux.HandleFunc("/adapters/", server.handleAdapterAPI)
	mux.HandleFunc("/connectors/", server.handleConnectorAPI)
	mux.HandleFunc("/ng-reports", server.handleNGReports)
	mux.HandleFunc("/ng-reports/", server.handleNGReportAPI)

	return server
}

// Start starts the web server
func (ws *WebServer) Start() error {
	ws.logger.Info("Starting web server", "addr", ws.httpAddr)
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error("web server error: ", "err", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the web server
func (ws *WebServer) Shutdown(ctx context.Context) error {
	ws.logger.Info("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// withRequestID echoes the client-supplied X-Request-ID header, minting
// one when absent, so responses can be correlated with upstream logs.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

// handleHealth reports liveness and uptime
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(ws.startTime).String(),
	})
}

// handleStorageStatus reports the report index and disk occupancy
func (ws *WebServer) handleStorageStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if ws.store == nil {
		JSONError(w, "Storage not configured", http.StatusServiceUnavailable)
		return
	}
	status, err := ws.store.Status(ws.cfg.Disk.WarningPercent)
	if err != nil {
		JSONError(w, "Error reading storage status: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// actorFromRequest resolves the acting operator from the X-Operator-ID
// header. The id must name a registered technician. The admin capability
// comes from X-Operator-Admin, set by the upstream auth proxy.
func (ws *WebServer) actorFromRequest(r *http.Request) (repository.Actor, bool) {
	idStr := r.Header.Get("X-Operator-ID")
	if idStr == "" {
		return repository.Actor{}, false
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return repository.Actor{}, false
	}
	tech, rerr := ws.repository.GetTechnicianByID(uint(id))
	if rerr != nil {
		return repository.Actor{}, false
	}

	return repository.Actor{
		TechnicianID: tech.ID,
		Name:         tech.Name,
		Admin:        r.Header.Get("X-Operator-Admin") == "true",
	}, true
}

// requireActor resolves the actor or writes a 401
func (ws *WebServer) requireActor(w http.ResponseWriter, r *http.Request) (repository.Actor, bool) {
	actor, ok := ws.actorFromRequest(r)
	if !ok {
		JSONError(w, "Missing or unknown X-Operator-ID header", http.StatusUnauthorized)
		return repository.Actor{}, false
	}
	return actor, true
}

// writeRepositoryError maps a repository error code onto an HTTP status
func writeRepositoryError(w http.ResponseWriter, rerr *repository.RepositoryError) {
	status := http.StatusInternalServerError
	switch rerr.Code {
	case repository.CodeEquipmentNotFound, repository.CodeConnectorNotFound:
		status = http.StatusNotFound
	case repository.CodeEquipmentQuarantined, repository.CodeDuplicateOpenReport, repository.CodeConflict:
		status = http.StatusConflict
	case repository.CodeInvalidTransition, repository.CodeInvalidState:
		status = http.StatusUnprocessableEntity
	}

	body := map[string]interface{}{
		"code":    rerr.Code,
		"message": rerr.Message,
		"detail":  rerr.Detail,
	}
	if rerr.Report != nil {
		body["report"] = rerr.Report
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(body)
}

// paginationParams reads offset/limit query values with a sane default
func paginationParams(r *http.Request) (int, int) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// JSONError sends a JSON formatted error response with the given status code and message
func JSONError(w http.ResponseWriter, message string, statusCode int) {
	errorResponse := struct {
		Error string `json:"error"`
	}{
		Error: message,
	}
	jsonBytes, err := json.Marshal(errorResponse)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(jsonBytes)
}
