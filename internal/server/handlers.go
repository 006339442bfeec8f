// ABOUTME: CRUD handlers for farmers, farms, cows, and insemination acts
// ABOUTME: Decodes payloads, parses path/query parameters, delegates to the store

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/elevage/herdbook/internal/store"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// ownerFilter reads the optional ?ownerId= query parameter.
func ownerFilter(r *http.Request) (*int64, bool) {
	raw := r.URL.Query().Get("ownerId")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// Farmers

func (s *Server) handleListFarmers(w http.ResponseWriter, r *http.Request) {
	farmers, err := s.store.ListFarmers(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, farmers)
}

func (s *Server) handleCreateFarmer(w http.ResponseWriter, r *http.Request) {
	var farmer store.Farmer
	if !decodeBody(w, r, &farmer) {
		return
	}
	created, err := s.store.CreateFarmer(r.Context(), &farmer)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetFarmer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	farmer, err := s.store.GetFarmer(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, farmer)
}

func (s *Server) handleUpdateFarmer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var patch store.FarmerPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	updated, err := s.store.UpdateFarmer(r.Context(), id, patch)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteFarmer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteFarmer(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Farms

func (s *Server) handleListFarms(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFilter(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ownerId")
		return
	}
	farms, err := s.store.ListFarms(r.Context(), store.FarmFilter{OwnerID: owner})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, farms)
}

func (s *Server) handleCreateFarm(w http.ResponseWriter, r *http.Request) {
	var farm store.Farm
	if !decodeBody(w, r, &farm) {
		return
	}
	created, err := s.store.CreateFarm(r.Context(), &farm)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetFarm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	farm, err := s.store.GetFarm(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, farm)
}

func (s *Server) handleUpdateFarm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var patch store.FarmPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	updated, err := s.store.UpdateFarm(r.Context(), id, patch)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteFarm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteFarm(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cows are addressed by their national identifier, not a surrogate key.

func (s *Server) handleListCows(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFilter(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ownerId")
		return
	}
	cows, err := s.store.ListCows(r.Context(), store.CowFilter{OwnerID: owner})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cows)
}

func (s *Server) handleCreateCow(w http.ResponseWriter, r *http.Request) {
	var cow store.Cow
	if !decodeBody(w, r, &cow) {
		return
	}
	if cow.NationalID == "" {
		writeError(w, http.StatusBadRequest, "nationalId is required")
		return
	}
	created, err := s.store.CreateCow(r.Context(), &cow)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCow(w http.ResponseWriter, r *http.Request) {
	cow, err := s.store.GetCow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cow)
}

func (s *Server) handleUpdateCow(w http.ResponseWriter, r *http.Request) {
	var patch store.CowPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	updated, err := s.store.UpdateCow(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCow(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCow(r.Context(), r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Insemination acts are immutable once recorded; there is no update route.

func (s *Server) handleListActs(w http.ResponseWriter, r *http.Request) {
	var filter store.ActFilter
	if raw := r.URL.Query().Get("nationalId"); raw != "" {
		filter.NationalID = &raw
	}
	acts, err := s.store.ListActs(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

func (s *Server) handleCreateAct(w http.ResponseWriter, r *http.Request) {
	var act store.Act
	if !decodeBody(w, r, &act) {
		return
	}
	created, err := s.store.CreateAct(r.Context(), &act)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetAct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	act, err := s.store.GetAct(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (s *Server) handleDeleteAct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteAct(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
