package handlers

import (
	"net/http"

	"github.com/thushan/ngsiproxy/internal/core/constants"
)

// ViewResponse carries what the viewer template needs to render a resource
type ViewResponse struct {
	Variables map[string]string `json:"variables,omitempty"`
	Flash     string            `json:"flash,omitempty"`
	CanView   bool              `json:"can_view"`
}

func (a *Application) viewHandler(w http.ResponseWriter, r *http.Request) {
	resource, err := a.catalog.Show(r.Context(), r.PathValue(constants.PathParamResource))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if resource.PackageID == "" {
		resource.PackageID = r.PathValue(constants.PathParamDataset)
	}

	viewer := a.viewer.Load()
	sameDomain := viewer.SameDomain(resource.URL)
	if !viewer.CanView(resource, sameDomain) {
		a.writeJSON(w, http.StatusOK, ViewResponse{CanView: false})
		return
	}

	setup := viewer.Setup(resource, sameDomain, a.catalogUser(r))
	vars, err := setup.TemplateVariables()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, ViewResponse{CanView: true, Variables: vars, Flash: setup.Flash})
}

func (a *Application) authMethodsHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.viewer.Load().AvailableAuthMethods())
}
