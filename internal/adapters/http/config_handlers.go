package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

type runtimeInfo struct {
	CronExpression string `json:"cronExpression"`
}

type configResponse struct {
	domain.Settings
	Runtime runtimeInfo `json:"runtime"`
}

func (rt *Router) configHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.getConfig(w, r)
	case http.MethodPut:
		rt.protected(http.MethodPut, rt.updateConfig)(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

func (rt *Router) getConfig(w http.ResponseWriter, r *http.Request) {
	settings, err := rt.deps.Settings.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.configResponse(settings))
}

func (rt *Router) updateConfig(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, rt.maxBodyBytes)
	defer body.Close()

	var patch domain.SettingsPatch
	if err := json.NewDecoder(body).Decode(&patch); err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "decode settings", err))
		return
	}

	settings, err := rt.deps.Settings.Update(r.Context(), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.configResponse(settings))
}

func (rt *Router) configResponse(settings domain.Settings) configResponse {
	resp := configResponse{Settings: settings}
	if rt.deps.Cron != nil {
		resp.Runtime.CronExpression = rt.deps.Cron.CronExpression()
	}
	return resp
}
