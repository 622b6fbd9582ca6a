package httpapi

import (
	"net/http"
	"strings"

	"garantias.org/internal/audit"
	"garantias.org/internal/query"
)

type listAuditResponse struct {
	Items []audit.View `json:"items"`
	Count int          `json:"count"`
}

func (a *API) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), a.auditLimit, 1, audit.MaxLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	f := audit.Filter{
		Search:    q.Get("search"),
		TableName: q.Get("table"),
		Limit:     limit,
	}
	if v := strings.TrimSpace(q.Get("action")); v != "" {
		if f.Action, err = audit.ParseAction(v); err != nil {
			a.handleServiceError(w, r, err)
			return
		}
	}
	if f.Dates, err = query.ParseDateRange(q.Get("from"), q.Get("to")); err != nil {
		a.handleServiceError(w, r, err)
		return
	}

	views, err := a.audit.List(r.Context(), f)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	if views == nil {
		views = []audit.View{}
	}
	writeJSON(w, http.StatusOK, listAuditResponse{Items: views, Count: len(views)})
}
