package mockapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"margem/internal/adminapi"
)

const (
	defaultActivityLimit = 10
	defaultReportLimit   = 10
	maxReportLimit       = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"service":  "mock-admin-api",
		"sessions": s.sessions.count(),
	})
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	cnpj, ok := requireParam(w, r, "cnpj")
	if !ok {
		return
	}
	store, err := s.data.StoreByCNPJ(cnpj)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var store adminapi.Store
	if !decodeBody(w, r, &store) {
		return
	}
	created, err := s.data.CreateStore(store)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	var store adminapi.Store
	if !decodeBody(w, r, &store) {
		return
	}
	updated, err := s.data.UpdateStore(id, store)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	cnpj, ok := requireParam(w, r, "cnpj")
	if !ok {
		return
	}
	if err := s.data.DeleteStore(cnpj); err != nil {
		writeDataError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetMobile answers an empty object when no user matches.
func (s *Server) handleGetMobile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email, phone := q.Get("email"), q.Get("phone")
	if email == "" && phone == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Informe email ou phone")
		return
	}
	user, ok := s.data.MobileUser(email, phone)
	if !ok {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateMobile(w http.ResponseWriter, r *http.Request) {
	var user adminapi.MobileUser
	if !decodeBody(w, r, &user) {
		return
	}
	created, err := s.data.CreateMobileUser(user)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateMobile(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	var user adminapi.MobileUser
	if !decodeBody(w, r, &user) {
		return
	}
	updated, err := s.data.UpdateMobileUser(id, user)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteMobile(w http.ResponseWriter, r *http.Request) {
	email, ok := requireParam(w, r, "email")
	if !ok {
		return
	}
	if err := s.data.DeleteMobileUser(email); err != nil {
		writeDataError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetUserStores(w http.ResponseWriter, r *http.Request) {
	id, ok := requireParam(w, r, "id")
	if !ok {
		return
	}
	stores, err := s.data.UserStores(id)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stores)
}

func (s *Server) handleLinkStore(w http.ResponseWriter, r *http.Request) {
	s.storeLink(w, r, s.data.LinkStore)
}

func (s *Server) handleUnlinkStore(w http.ResponseWriter, r *http.Request) {
	s.storeLink(w, r, s.data.UnlinkStore)
}

func (s *Server) storeLink(w http.ResponseWriter, r *http.Request, apply func(email, cnpj string) error) {
	email, ok := requireParam(w, r, "email")
	if !ok {
		return
	}
	cnpj, ok := requireParam(w, r, "cnpj")
	if !ok {
		return
	}
	if err := apply(email, cnpj); err != nil {
		writeDataError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsersByIDs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.data.UsersByIDs(req.IDs))
}

// handleGetSupport answers an empty object when no user matches.
func (s *Server) handleGetSupport(w http.ResponseWriter, r *http.Request) {
	email, ok := requireParam(w, r, "email")
	if !ok {
		return
	}
	user, found := s.data.SupportUser(email)
	if !found {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateSupport(w http.ResponseWriter, r *http.Request) {
	var user adminapi.SupportUser
	if !decodeBody(w, r, &user) {
		return
	}
	created, err := s.data.CreateSupportUser(user)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateSupport(w http.ResponseWriter, r *http.Request) {
	var user adminapi.SupportUser
	if !decodeBody(w, r, &user) {
		return
	}
	updated, err := s.data.UpdateSupportUser(user)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSupport(w http.ResponseWriter, r *http.Request) {
	email, ok := requireParam(w, r, "email")
	if !ok {
		return
	}
	if err := s.data.DeleteSupportUser(email); err != nil {
		writeDataError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPartners(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Partners())
}

func (s *Server) handleGetPartner(w http.ResponseWriter, r *http.Request) {
	partner, err := s.data.Partner(chi.URLParam(r, "key"))
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partner)
}

func (s *Server) handleCreatePartner(w http.ResponseWriter, r *http.Request) {
	var req adminapi.PartnerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	partner, err := s.data.CreatePartner(req)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, partner)
}

func (s *Server) handleUpdatePartner(w http.ResponseWriter, r *http.Request) {
	var req adminapi.PartnerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	partner, err := s.data.UpdatePartner(chi.URLParam(r, "key"), req)
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partner)
}

func (s *Server) handleDeletePartner(w http.ResponseWriter, r *http.Request) {
	if err := s.data.DeletePartner(chi.URLParam(r, "key")); err != nil {
		writeDataError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.data.States())
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Cities(r.URL.Query().Get("estado")))
}

func (s *Server) handleSegments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Segments())
}

func (s *Server) handleSizes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Sizes())
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Stats())
}

func (s *Server) handleDashboardActivity(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", defaultActivityLimit)
	writeJSON(w, http.StatusOK, s.data.RecentActivity(limit))
}

func (s *Server) handleReportSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.data.Summary())
}

func (s *Server) handleStoresReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(r, "page", 1)
	limit := min(intParam(r, "limit", defaultReportLimit), maxReportLimit)
	partner := q.Get("partner")
	if partner == "all" {
		partner = ""
	}
	active := q.Get("active")
	if active != "" && active != "true" && active != "false" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "active deve ser true ou false")
		return
	}
	writeJSON(w, http.StatusOK, s.data.StoresReport(page, limit, partner, active))
}

// intParam parses a positive integer query parameter, falling back to def.
func intParam(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
