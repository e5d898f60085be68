package daemon

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"reelsmith/internal/api"
	"reelsmith/internal/batch"
	"reelsmith/internal/campaign"
	"reelsmith/internal/captions"
	"reelsmith/internal/notifications"
	"reelsmith/internal/refine"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

func (s *apiServer) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	filter, err := campaignFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.daemon.campaigns.List(r.Context(), userID(r), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func campaignFilter(r *http.Request) (store.CampaignFilter, error) {
	query := r.URL.Query()
	filter := store.CampaignFilter{
		PersonaID:  strings.TrimSpace(query.Get("personaId")),
		TemplateID: strings.TrimSpace(query.Get("templateId")),
		BatchID:    strings.TrimSpace(query.Get("batchId")),
		Search:     strings.TrimSpace(query.Get("search")),
		OrderBy:    strings.TrimSpace(query.Get("orderBy")),
		OrderDir:   strings.TrimSpace(query.Get("orderDir")),
	}
	if value := strings.TrimSpace(query.Get("status")); value != "" {
		status, err := campaign.ParseStatus(value)
		if err != nil {
			return filter, services.Wrap(services.ErrValidation, "", "", err.Error(), nil)
		}
		filter.Status = status
	}
	for key, dst := range map[string]*int{"page": &filter.Page, "limit": &filter.Limit} {
		value := strings.TrimSpace(query.Get(key))
		if value == "" {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return filter, services.Wrap(services.ErrValidation, "", "", key+" must be a positive integer", nil)
		}
		*dst = n
	}
	return filter, nil
}

func (s *apiServer) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req api.CreateCampaignRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.daemon.campaigns.Create(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.CampaignResponse{Campaign: created})
}

func (s *apiServer) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.daemon.campaigns.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CampaignResponse{Campaign: c})
}

func (s *apiServer) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateCampaignRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.daemon.campaigns.Update(r.Context(), userID(r), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CampaignResponse{Campaign: updated})
}

func (s *apiServer) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.campaigns.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleExecuteCampaign(w http.ResponseWriter, r *http.Request) {
	var req api.ExecuteRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := req.Options()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	started, err := s.daemon.runner.Start(r.Context(), userID(r), r.PathValue("id"), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.ExecuteResponse{Status: "started", Campaign: started})
}

func (s *apiServer) handleDuplicateCampaign(w http.ResponseWriter, r *http.Request) {
	dup, err := s.daemon.campaigns.Duplicate(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.CampaignResponse{Campaign: dup})
}

func (s *apiServer) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	filename, content, err := s.daemon.campaigns.Subtitles(r.Context(), userID(r), r.PathValue("id"), r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

func (s *apiServer) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := s.daemon.personas.List(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PersonaListResponse{Personas: personas})
}

func (s *apiServer) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	var req campaign.Persona
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.daemon.personas.Create(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.PersonaResponse{Persona: created})
}

func (s *apiServer) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.personas.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.daemon.templates.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TemplateListResponse{Templates: templates})
}

func (s *apiServer) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.daemon.templates.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TemplateResponse{Template: tmpl})
}

func (s *apiServer) handleCaptionPresets(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.CaptionPresetListResponse{Presets: captions.Presets()})
}

func (s *apiServer) handleKeyStatuses(w http.ResponseWriter, r *http.Request) {
	s.writeKeyStatuses(w, r)
}

func (s *apiServer) handleSetKey(w http.ResponseWriter, r *http.Request) {
	var req api.SetKeyRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	provider := r.PathValue("provider")
	var err error
	if strings.TrimSpace(req.APIKey) == "" {
		err = s.daemon.keys.Delete(r.Context(), userID(r), provider)
	} else {
		err = s.daemon.keys.Set(r.Context(), userID(r), provider, req.APIKey)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeKeyStatuses(w, r)
}

func (s *apiServer) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.keys.Delete(r.Context(), userID(r), r.PathValue("provider")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeKeyStatuses(w, r)
}

func (s *apiServer) writeKeyStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.daemon.keys.Statuses(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrTransient, "apikeys", "status", "", err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.KeyStatusResponse{Keys: statuses})
}

func (s *apiServer) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refine.Request
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.daemon.refiner.Refine(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.daemon.batches.List(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BatchListResponse{Batches: batches})
}

func (s *apiServer) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batch.CreateRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, members, err := s.daemon.batches.Create(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.BatchResponse{Batch: b, Campaigns: members})
}

func (s *apiServer) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, members, err := s.daemon.batches.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BatchResponse{Batch: b, Campaigns: members})
}

func (s *apiServer) handleExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var req api.ExecuteRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := req.Options()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.daemon.batches.Start(r.Context(), userID(r), r.PathValue("id"), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.BatchResponse{Batch: b})
}

func (s *apiServer) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.daemon.batches.Cancel(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BatchResponse{Batch: b})
}

// TestNotification publishes a test event using the configured topic.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, notifications.Payload{}); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
