package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/editor"
	"github.com/c360/sitekit/errors"
)

type pageResponse struct {
	Tenant     string               `json:"tenant"`
	Page       string               `json:"page"`
	Components []component.Instance `json:"components"`
}

type configResponse struct {
	ID      string         `json:"id"`
	Visible bool           `json:"visible"`
	Config  map[string]any `json:"config"`
}

type updatePathRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type replaceDataRequest struct {
	Data map[string]any `json:"data"`
}

type addComponentRequest struct {
	Type          string         `json:"type"`
	ComponentName string         `json:"componentName"`
	Data          map[string]any `json:"data"`
}

type reorderRequest struct {
	Order []string `json:"order"`
}

type catalogEntry struct {
	component.Descriptor
	DefaultData map[string]any `json:"defaultData"`
}

type catalogResponse struct {
	Sections []string       `json:"sections"`
	Types    []catalogEntry `json:"types"`
}

// session resolves the request's tenant and returns its editor session.
func (a *API) session(r *http.Request) (*editor.Session, error) {
	tenantID, err := a.tenants.Resolve(r)
	if err != nil {
		return nil, err
	}
	return a.manager.Session(r.Context(), tenantID)
}

// decodeBody reads the body, validates it against schema and decodes it into v.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, schema string, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "API", "decodeBody", "read body")
	}
	if err := a.validator.Validate(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "API", "decodeBody", "decode body")
	}
	return nil
}

// currentPage returns slug's components with their live data.
func currentPage(s *editor.Session, list []component.Instance) []component.Instance {
	store := s.Store()
	for i := range list {
		list[i].Data = store.GetData(list[i].Type, list[i].ID)
	}
	return list
}

func (a *API) handleGetPage(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.writeError(w, r, "load tenant", err)
		return
	}
	slug := r.PathValue("slug")
	list, err := s.Open(r.Context(), slug)
	if err != nil {
		a.writeError(w, r, "open page", err)
		return
	}
	a.writeJSON(w, http.StatusOK, pageResponse{
		Tenant:     s.TenantID(),
		Page:       slug,
		Components: currentPage(s, list),
	})
}

func (a *API) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.writeError(w, r, "load tenant", err)
		return
	}
	id := r.PathValue("id")
	cfg, err := s.Config(r.Context(), r.PathValue("slug"), id, nil)
	if err != nil {
		a.writeError(w, r, "merge configuration", err)
		return
	}
	a.writeJSON(w, http.StatusOK, configResponse{ID: id, Visible: cfg.Visible(), Config: cfg})
}

func (a *API) handleUpdatePath(w http.ResponseWriter, r *http.Request) {
	var req updatePathRequest
	if err := a.decodeBody(w, r, schemaUpdatePath, &req); err != nil {
		a.writeError(w, r, "decode request", err)
		return
	}
	s, err := a.session(r)
	if err != nil {
		a.writeError(w, r, "load tenant", err)
		return
	}
	delta, err := s.UpdateByPath(r.Context(), r.PathValue("slug"), r.PathValue("id"), req.Path, req.Value)
	if err != nil {
		a.writeError(w, r, "update component", err)
		return
	}
	a.writeJSON(w, http.StatusOK, delta)
}

func (a *API) handleReplaceData(w http.ResponseWriter, r *http.Request) {
	var req replaceDataRequest
	if err := a.decodeBody(w, r, schemaReplaceData, &req); err != nil {
		a.writeError(w, r, "decode request", err)
		return
	}
	s, err := a.session(r)
	if err != nil {
		a.writeError(w, r, "load tenant", err)
		return
	}
	delta, err := s.SetData(r.Context(), r.PathValue("slug"), r.PathValue("id"), req.Data)
	if err != nil {
		a.writeError(w, r, "replace component data", err)
		return
	}
	a.writeJSON(w, http.StatusOK, delta)
}

func (a *API) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addComponentRequest
	if err := a.decodeBody(w, r, schemaAddComponent, &req); err != nil {
		a.writeError(w, r, "decode request", err)
		return
	}
	s, err := a.session(r)
	if err != nil {
		a.writeError(w, r, "load tenant", err)
		return
	}
	inst, delta, err := s.Add(r.Context(), r.PathValue("slug"), req.Type, req.ComponentName, req.Data)
	if err != nil {
		a.writeError(w, r, "add component", err)
		return
	}
	inst.Data = s.Store().GetData(inst.Type, inst.ID)
	a.writeJSON(w, http.StatusCreated, map[string]any{"component": inst, "delta": delta})
}

func (a *API) handleRemove(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.writeError(w, r, "load tenant", err)
		return
	}
	delta, err := s.Remove(r.Context(), r.PathValue("slug"), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, "remove component", err)
		return
	}
	a.writeJSON(w, http.StatusOK, delta)
}

func (a *API) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := a.decodeBody(w, r, schemaReorder, &req); err != nil {
		a.writeError(w, r, "decode request", err)
		return
	}
	s, err := a.session(r)
	if err != nil {
		a.writeError(w, r, "load tenant", err)
		return
	}
	delta, err := s.Reorder(r.Context(), r.PathValue("slug"), req.Order)
	if err != nil {
		a.writeError(w, r, "reorder page", err)
		return
	}
	a.writeJSON(w, http.StatusOK, delta)
}

func (a *API) handleSave(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.writeError(w, r, "load tenant", err)
		return
	}
	if !a.limiter.Allow(s.TenantID()) {
		a.writeError(w, r, "save page", errors.WrapTransient(errors.ErrRateLimited, "API", "handleSave", "save throttle"))
		return
	}
	slug := r.PathValue("slug")
	list, err := s.Save(r.Context(), slug)
	if err != nil {
		a.writeError(w, r, "save page", err)
		return
	}
	a.writeJSON(w, http.StatusOK, pageResponse{Tenant: s.TenantID(), Page: slug, Components: list})
}

func (a *API) handleRender(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.writeError(w, r, "load tenant", err)
		return
	}
	var buf bytes.Buffer
	if err := s.Render(r.Context(), r.PathValue("slug"), &buf); err != nil {
		a.writeError(w, r, "render page", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		a.logger.Debug("Failed to write rendered page", "error", err)
	}
}

func (a *API) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	registry := a.manager.Registry()
	types := registry.Types()
	resp := catalogResponse{
		Sections: registry.Sections(),
		Types:    make([]catalogEntry, 0, len(types)),
	}
	for _, d := range types {
		resp.Types = append(resp.Types, catalogEntry{Descriptor: d, DefaultData: registry.DefaultData(d.TypeID)})
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLive(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.writeError(w, r, "load tenant", err)
		return
	}
	a.hub.Serve(w, r, s)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := a.checker.Run(r.Context(), "sitekit")
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	a.writeJSON(w, code, status)
}
