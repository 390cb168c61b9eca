package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jigtrack/repository"
	"jigtrack/repository/models"
)

// handleTechnicians handles POST /technicians and GET /technicians
func (ws *WebServer) handleTechnicians(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			Username   string `json:"username"`
			Name       string `json:"name"`
			EmployeeNo string `json:"employee_no"`
			Role       string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		tech, rerr := ws.repository.CreateTechnician(body.Username, body.Name, body.EmployeeNo, body.Role)
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusCreated, tech)
	case http.MethodGet:
		techs, rerr := ws.repository.ListTechnicians()
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, techs)
	default:
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTechnicianAPI handles PUT /technicians/{id}/shift
func (ws *WebServer) handleTechnicianAPI(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) != 4 || pathParts[3] != "shift" {
		JSONError(w, "Not found", http.StatusNotFound)
		return
	}
	id, err := parseID(pathParts[2])
	if err != nil {
		JSONError(w, "Invalid technician ID", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodPut {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Shift string `json:"shift"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	tech, rerr := ws.repository.SetTechnicianShift(id, body.Shift)
	if rerr != nil {
		writeRepositoryError(w, rerr)
		return
	}
	writeJSON(w, http.StatusOK, tech)
}

// handleJigs handles POST /jigs and GET /jigs
func (ws *WebServer) handleJigs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			QRCode       string `json:"qr_code"`
			JigNumber    string `json:"jig_number"`
			Type         string `json:"type"`
			CurrentModel string `json:"current_model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		jig, rerr := ws.repository.CreateJig(&models.Jig{
			QRCode:       body.QRCode,
			JigNumber:    body.JigNumber,
			Type:         body.Type,
			CurrentModel: body.CurrentModel,
			Status:       models.JigStatusActive,
		})
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusCreated, jig)
	case http.MethodGet:
		offset, limit := paginationParams(r)
		jigs, rerr := ws.repository.ListJigs(offset, limit)
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, jigs)
	default:
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJigAPI handles PUT /jigs/{id} and DELETE /jigs/{id}
func (ws *WebServer) handleJigAPI(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) != 3 {
		JSONError(w, "Not found", http.StatusNotFound)
		return
	}
	id, err := parseID(pathParts[2])
	if err != nil {
		JSONError(w, "Invalid jig ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var body struct {
			JigNumber    string `json:"jig_number"`
			Type         string `json:"type"`
			CurrentModel string `json:"current_model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		jig, rerr := ws.repository.UpdateJig(id, body.JigNumber, body.Type, body.CurrentModel)
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, jig)
	case http.MethodDelete:
		actor, ok := ws.requireActor(w, r)
		if !ok {
			return
		}
		if !actor.Admin {
			JSONError(w, "Admin capability required", http.StatusForbidden)
			return
		}
		if rerr := ws.repository.DeleteJig(id, actor); rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleEquipmentView handles GET /equipment/{qr}
func (ws *WebServer) handleEquipmentView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) != 3 || pathParts[2] == "" {
		JSONError(w, "Invalid QR code", http.StatusBadRequest)
		return
	}
	view, rerr := ws.repository.GetEquipmentView(pathParts[2])
	if rerr != nil {
		writeRepositoryError(w, rerr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleValidations handles POST /validations and GET /validations
func (ws *WebServer) handleValidations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		actor, ok := ws.requireActor(w, r)
		if !ok {
			return
		}
		var body struct {
			JigID          *uint      `json:"jig_id"`
			AssignedTechID *uint      `json:"assigned_tech_id"`
			Shift          string     `json:"shift"`
			Outcome        string     `json:"outcome"`
			Comment        string     `json:"comment"`
			Quantity       int        `json:"quantity"`
			Timestamp      *time.Time `json:"timestamp"`
			Completed      bool       `json:"completed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		validation, rerr := ws.repository.SubmitValidation(repository.SubmitValidationInput{
			JigID:          body.JigID,
			Actor:          actor,
			AssignedTechID: body.AssignedTechID,
			Shift:          body.Shift,
			Outcome:        body.Outcome,
			Comment:        body.Comment,
			Quantity:       body.Quantity,
			Timestamp:      body.Timestamp,
			Completed:      body.Completed,
		})
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusCreated, validation)
	case http.MethodGet:
		offset, limit := paginationParams(r)
		var jigID *uint
		if v := r.URL.Query().Get("jig_id"); v != "" {
			id, err := parseID(v)
			if err != nil {
				JSONError(w, "Invalid jig_id filter", http.StatusBadRequest)
				return
			}
			jigID = &id
		}
		validations, rerr := ws.repository.ListValidations(jigID, r.URL.Query().Get("shift"), offset, limit)
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, validations)
	default:
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAdapters handles POST /adapters and GET /adapters
func (ws *WebServer) handleAdapters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			QRCode        string   `json:"qr_code"`
			AdapterNumber string   `json:"adapter_number"`
			Model         string   `json:"model"`
			Connectors    []string `json:"connectors"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		adapter, rerr := ws.repository.CreateAdapter(repository.CreateAdapterInput{
			QRCode:        body.QRCode,
			AdapterNumber: body.AdapterNumber,
			Model:         body.Model,
			Connectors:    body.Connectors,
		})
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusCreated, adapter)
	case http.MethodGet:
		offset, limit := paginationParams(r)
		adapters, rerr := ws.repository.ListAdapters(
			r.URL.Query().Get("model"),
			r.URL.Query().Get("status"),
			offset, limit,
			r.URL.Query().Get("with_connectors") == "true",
		)
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, adapters)
	default:
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAdapterAPI dispatches /adapters/{qr}, /adapters/{id} and the
// adapter sub-resources
func (ws *WebServer) handleAdapterAPI(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(r.URL.Path, "/")

	if len(pathParts) == 3 {
		switch r.Method {
		case http.MethodGet:
			adapter, rerr := ws.repository.GetAdapterByQR(pathParts[2])
			if rerr != nil {
				writeRepositoryError(w, rerr)
				return
			}
			writeJSON(w, http.StatusOK, adapter)
		case http.MethodPut:
			id, err := parseID(pathParts[2])
			if err != nil {
				JSONError(w, "Invalid adapter ID", http.StatusBadRequest)
				return
			}
			var body struct {
				AdapterNumber string `json:"adapter_number"`
				Model         string `json:"model"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
				return
			}
			adapter, rerr := ws.repository.UpdateAdapter(id, body.AdapterNumber, body.Model)
			if rerr != nil {
				writeRepositoryError(w, rerr)
				return
			}
			writeJSON(w, http.StatusOK, adapter)
		default:
			JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if len(pathParts) != 4 {
		JSONError(w, "Not found", http.StatusNotFound)
		return
	}
	id, err := parseID(pathParts[2])
	if err != nil {
		JSONError(w, "Invalid adapter ID", http.StatusBadRequest)
		return
	}

	switch pathParts[3] {
	case "decommission":
		if r.Method != http.MethodPost {
			JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		adapter, rerr := ws.repository.DecommissionAdapter(id)
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, adapter)
	case "dual-connector":
		if r.Method != http.MethodPost {
			JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		adapter, rerr := ws.repository.ToggleDualConnector(id)
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, adapter)
	case "validations":
		ws.handleAdapterValidation(w, r, id)
	default:
		JSONError(w, "Not found", http.StatusNotFound)
	}
}

// handleAdapterValidation handles POST /adapters/{id}/validations
func (ws *WebServer) handleAdapterValidation(w http.ResponseWriter, r *http.Request, adapterID uint) {
	if r.Method != http.MethodPost {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := ws.requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Shift          string `json:"shift"`
		OverallOutcome string `json:"overall_outcome"`
		Comment        string `json:"comment"`
		Connectors     []struct {
			ConnectorID uint   `json:"connector_id"`
			Outcome     string `json:"outcome"`
			Comment     string `json:"comment"`
		} `json:"connectors"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	in := repository.SubmitAdapterValidationInput{
		AdapterID:      adapterID,
		Actor:          actor,
		Shift:          body.Shift,
		OverallOutcome: body.OverallOutcome,
		Comment:        body.Comment,
	}
	for _, c := range body.Connectors {
		in.Connectors = append(in.Connectors, repository.ConnectorResult{
			ConnectorID: c.ConnectorID,
			Outcome:     c.Outcome,
			Comment:     c.Comment,
		})
	}

	validation, rerr := ws.repository.SubmitAdapterValidation(in)
	if rerr != nil {
		writeRepositoryError(w, rerr)
		return
	}
	writeJSON(w, http.StatusCreated, validation)
}

// handleConnectorAPI dispatches /connectors/stats, /connectors/bulk-ok and
// /connectors/{id}/status
func (ws *WebServer) handleConnectorAPI(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(r.URL.Path, "/")

	if len(pathParts) == 3 {
		switch pathParts[2] {
		case "stats":
			if r.Method != http.MethodGet {
				JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			stats, rerr := ws.repository.GetConnectorStats(r.URL.Query().Get("model"))
			if rerr != nil {
				writeRepositoryError(w, rerr)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		case "bulk-ok":
			ws.handleBulkMarkOK(w, r)
		default:
			JSONError(w, "Not found", http.StatusNotFound)
		}
		return
	}

	if len(pathParts) != 4 || pathParts[3] != "status" {
		JSONError(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPut {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := parseID(pathParts[2])
	if err != nil {
		JSONError(w, "Invalid connector ID", http.StatusBadRequest)
		return
	}
	actor, ok := ws.requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Status  string `json:"status"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	touched, rerr := ws.repository.SetConnectorStatus(id, body.Status, actor, body.Comment)
	if rerr != nil {
		writeRepositoryError(w, rerr)
		return
	}
	writeJSON(w, http.StatusOK, touched)
}

// handleBulkMarkOK handles POST /connectors/bulk-ok
func (ws *WebServer) handleBulkMarkOK(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := ws.requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		ConnectorIDs []uint     `json:"connector_ids"`
		Line         string     `json:"line"`
		Shift        string     `json:"shift"`
		AsOf         *time.Time `json:"as_of"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	result, rerr := ws.repository.BulkMarkConnectorsOK(body.ConnectorIDs, actor, body.Line, body.Shift, body.AsOf)
	if rerr != nil {
		writeRepositoryError(w, rerr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleNGReports handles POST /ng-reports and GET /ng-reports
func (ws *WebServer) handleNGReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		actor, ok := ws.requireActor(w, r)
		if !ok {
			return
		}
		var body struct {
			JigID         uint    `json:"jig_id"`
			Reason        string  `json:"reason"`
			Category      string  `json:"category"`
			Priority      string  `json:"priority"`
			PhotoEvidence *string `json:"photo_evidence"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		report, rerr := ws.repository.OpenNGReport(repository.OpenNGReportInput{
			JigID:         body.JigID,
			Actor:         actor,
			Reason:        body.Reason,
			Category:      body.Category,
			Priority:      body.Priority,
			PhotoEvidence: body.PhotoEvidence,
		})
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusCreated, report)
	case http.MethodGet:
		offset, limit := paginationParams(r)
		reports, rerr := ws.repository.ListNGReports(
			r.URL.Query().Get("status"),
			r.URL.Query().Get("category"),
			offset, limit,
		)
		if rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, reports)
	default:
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleNGReportAPI dispatches /ng-reports/stats, /ng-reports/{id} and
// /ng-reports/{id}/status
func (ws *WebServer) handleNGReportAPI(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(r.URL.Path, "/")

	if len(pathParts) == 3 {
		if pathParts[2] == "stats" {
			if r.Method != http.MethodGet {
				JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			stats, rerr := ws.repository.NGStats()
			if rerr != nil {
				writeRepositoryError(w, rerr)
				return
			}
			writeJSON(w, http.StatusOK, stats)
			return
		}
		id, err := parseID(pathParts[2])
		if err != nil {
			JSONError(w, "Invalid report ID", http.StatusBadRequest)
			return
		}
		if r.Method != http.MethodDelete {
			JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if rerr := ws.repository.DeleteNGReport(id); rerr != nil {
			writeRepositoryError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		return
	}

	if len(pathParts) != 4 || pathParts[3] != "status" {
		JSONError(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPut {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := parseID(pathParts[2])
	if err != nil {
		JSONError(w, "Invalid report ID", http.StatusBadRequest)
		return
	}
	actor, ok := ws.requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	report, rerr := ws.repository.TransitionNGReport(id, body.Status, actor, body.Notes)
	if rerr != nil {
		writeRepositoryError(w, rerr)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	return uint(id), err
}
