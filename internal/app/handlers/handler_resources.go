package handlers

import (
	"net/http"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

func (a *Application) createResourceHandler(w http.ResponseWriter, r *http.Request) {
	var resource domain.Resource
	if err := a.decodeJSON(r, &resource); err != nil {
		a.writeError(w, r, err)
		return
	}

	created, err := a.catalog.Create(r.Context(), &resource)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.refreshCatalogGauge(r)
	a.writeJSON(w, http.StatusCreated, created)
}

// updateResourceHandler replaces the resource, the id in the path wins
func (a *Application) updateResourceHandler(w http.ResponseWriter, r *http.Request) {
	var resource domain.Resource
	if err := a.decodeJSON(r, &resource); err != nil {
		a.writeError(w, r, err)
		return
	}
	resource.ID = r.PathValue(constants.PathParamResource)

	updated, err := a.catalog.Update(r.Context(), &resource)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, updated)
}

func (a *Application) showResourceHandler(w http.ResponseWriter, r *http.Request) {
	resource, err := a.catalog.Show(r.Context(), r.PathValue(constants.PathParamResource))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, resource)
}

func (a *Application) refreshCatalogGauge(r *http.Request) {
	if a.recorder == nil {
		return
	}
	if n, err := a.catalog.Count(r.Context()); err == nil {
		a.recorder.SetCatalogResources(n)
	}
}
