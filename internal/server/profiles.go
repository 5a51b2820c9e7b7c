package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/example/voiceapi/internal/profile"
)

type profileRequest struct {
	Name         string   `json:"name"`
	Exaggeration *float64 `json:"exaggeration"`
	CFGWeight    *float64 `json:"cfg_weight"`
	Description  string   `json:"description"`
}

func (h *handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	profiles, err := h.svc.Profiles(r.Context())
	if err != nil {
		h.fail(w, r, "list profiles", start, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Exaggeration == nil || req.CFGWeight == nil {
		writeError(w, http.StatusBadRequest, "exaggeration and cfg_weight are required")
		return
	}

	start := time.Now()
	err := h.svc.SaveProfile(r.Context(), req.Name, profile.Params{
		Exaggeration: *req.Exaggeration,
		CFGWeight:    *req.CFGWeight,
		Description:  req.Description,
	})
	if err != nil {
		h.fail(w, r, "save profile", start, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Voice profile '%s' created successfully", req.Name),
	})
}

func (h *handler) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	start := time.Now()
	if err := h.svc.DeleteProfile(r.Context(), name); err != nil {
		h.fail(w, r, "delete profile", start, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Voice profile '%s' deleted successfully", name),
	})
}
