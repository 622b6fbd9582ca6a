package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"garantias.org/internal/auth"
	"garantias.org/internal/guarantee"
	"garantias.org/internal/query"
)

type listGuaranteesResponse struct {
	Items []guarantee.Guarantee `json:"items"`
	Count int                   `json:"count"`
}

func (a *API) createGuarantee(w http.ResponseWriter, r *http.Request) {
	var in guarantee.Fields
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	g, err := a.guarantees.Create(r.Context(), in)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/guarantees/"+g.ID)
	writeJSON(w, http.StatusCreated, g)
}

func (a *API) listGuarantees(w http.ResponseWriter, r *http.Request) {
	f, err := guaranteeFilter(r)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	items, err := a.guarantees.List(r.Context(), f)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []guarantee.Guarantee{}
	}
	writeJSON(w, http.StatusOK, listGuaranteesResponse{Items: items, Count: len(items)})
}

func (a *API) getGuarantee(w http.ResponseWriter, r *http.Request) {
	g, err := a.guarantees.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) deactivateGuarantee(w http.ResponseWriter, r *http.Request) {
	g, err := a.guarantees.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func guaranteeFilter(r *http.Request) (guarantee.Filter, error) {
	q := r.URL.Query()
	f := guarantee.Filter{
		Status: guarantee.Status(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		Search: q.Get("search"),
	}
	var err error
	if v := strings.TrimSpace(q.Get("region")); v != "" {
		if f.Region, err = auth.ParseRegion(v); err != nil {
			return f, err
		}
	}
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		if f.Type, err = guarantee.ParseType(v); err != nil {
			return f, err
		}
	}
	if v := strings.TrimSpace(q.Get("currency")); v != "" {
		if f.Currency, err = guarantee.ParseCurrency(v); err != nil {
			return f, err
		}
	}
	if f.Dates, err = query.ParseDateRange(q.Get("from"), q.Get("to")); err != nil {
		return f, err
	}
	return f, nil
}
