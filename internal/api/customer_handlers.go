package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/crm-quality/internal/customers"
	"github.com/ignite/crm-quality/internal/domain"
	"github.com/ignite/crm-quality/internal/pkg/httputil"
	"github.com/ignite/crm-quality/internal/pkg/logger"
	"github.com/ignite/crm-quality/internal/quality"
	"github.com/ignite/crm-quality/internal/tableview"
)

// =============================================================================
// CUSTOMER TABLE HANDLERS
// =============================================================================
// HTTP handlers for the customer quality table:
// - Filtered, sorted and paginated projection of the composed rows
// - Manual refresh of the row set
// - Column visibility toggles
// - Per-customer completeness with suggestions

// Error codes returned in ErrorResponse.Code.
const (
	CodeBaseFetchFailed = "base_fetch_failed"
	CodeNotLoaded       = "not_loaded"
)

// retryAfterSeconds is advertised on 503 answers.
const retryAfterSeconds = 30

// CustomerAPI serves the customer table.
type CustomerAPI struct {
	table   *tableview.State
	source  customers.CustomerSource
	catalog *quality.Catalog
}

// NewCustomerAPI creates the handler set. source and catalog back the
// per-customer completeness endpoint.
func NewCustomerAPI(table *tableview.State, source customers.CustomerSource, catalog *quality.Catalog) *CustomerAPI {
	if catalog == nil {
		catalog = quality.DefaultCatalog()
	}
	return &CustomerAPI{table: table, source: source, catalog: catalog}
}

// RegisterRoutes registers customer routes under /customers.
func (api *CustomerAPI) RegisterRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/table", api.HandleGetTable)
		r.Post("/table/refresh", api.HandleRefresh)
		r.Put("/table/columns/{column}/toggle", api.HandleToggleColumn)
		r.Get("/{id}/completeness", api.HandleGetCompleteness)
	})
}

// HandleGetTable applies any settings given in the query and renders the
// current page. The first request loads the rows.
// GET /api/customers/table
func (api *CustomerAPI) HandleGetTable(w http.ResponseWriter, r *http.Request) {
	if err := api.applyQuery(r); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if status, _ := api.table.Status(); status == tableview.StatusIdle {
		if err := api.table.Refresh(r.Context()); err != nil && !tableview.IsBaseFetchFailure(err) {
			logger.Warn("initial table load incomplete", "error", err)
		}
	}

	view, err := api.table.Projection()
	if err != nil {
		writeTableError(w, err)
		return
	}
	httputil.OK(w, view)
}

// HandleRefresh rebuilds the row set.
// POST /api/customers/table/refresh
func (api *CustomerAPI) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	err := api.table.Refresh(r.Context())
	view, perr := api.table.Projection()
	if perr != nil {
		writeTableError(w, perr)
		return
	}
	if err != nil && tableview.IsBaseFetchFailure(err) {
		// stale rows are still served
		logger.Warn("refresh failed, serving stale rows", "error", err)
	}
	httputil.OK(w, view)
}

// HandleToggleColumn flips one column's visibility.
// PUT /api/customers/table/columns/{column}/toggle
func (api *CustomerAPI) HandleToggleColumn(w http.ResponseWriter, r *http.Request) {
	col := tableview.Column(chi.URLParam(r, "column"))
	visible, err := api.table.ToggleColumn(col)
	if errors.Is(err, tableview.ErrUnknownColumn) {
		httputil.NotFound(w, "unknown column "+string(col))
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"column":  col,
		"visible": visible,
		"columns": api.table.Settings().Columns,
	})
}

// CompletenessResponse is the per-customer completeness answer.
type CompletenessResponse struct {
	CustomerID      string                     `json:"customer_id"`
	Name            string                     `json:"name"`
	Completeness    quality.CompletenessResult `json:"completeness"`
	ProfileComplete bool                       `json:"profile_complete"`
	NextField       *quality.FieldDescriptor   `json:"next_field,omitempty"`
	Suggestions     []string                   `json:"suggestions"`
}

// HandleGetCompleteness scores one customer.
// GET /api/customers/{id}/completeness
func (api *CustomerAPI) HandleGetCompleteness(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		httputil.BadRequest(w, "customer id is required")
		return
	}

	records, err := api.source.FetchCustomers(r.Context(), domain.CustomerFilter{IDs: []string{id}, Limit: 1})
	if err != nil {
		logger.Error("customer fetch failed", "customer_id", id, "error", err)
		httputil.Unavailable(w, CodeBaseFetchFailed, "could not load customer", retryAfterSeconds)
		return
	}
	if len(records) == 0 {
		httputil.NotFound(w, "customer not found")
		return
	}

	c := records[0]
	resp := CompletenessResponse{
		CustomerID:      c.ID,
		Name:            c.Name,
		Completeness:    api.catalog.Score(c),
		ProfileComplete: api.catalog.IsProfileComplete(c),
		Suggestions:     api.catalog.Suggestions(c),
	}
	if next, ok := api.catalog.NextSuggestedField(c); ok {
		resp.NextField = &next
	}
	httputil.OK(w, resp)
}

// applyQuery copies the settings present in the query onto the table.
// Absent parameters leave the current setting alone.
func (api *CustomerAPI) applyQuery(r *http.Request) error {
	q := r.URL.Query()

	if q.Has("search") {
		api.table.SetSearchTerm(q.Get("search"))
	}

	if q.Has("sort") || q.Has("dir") {
		current := api.table.Settings()
		key, dir := current.SortKey, current.Direction
		if q.Has("sort") {
			// unknown keys leave rows in load order
			key = tableview.SortKey(q.Get("sort"))
		}
		if q.Has("dir") {
			dir = tableview.ParseDirection(q.Get("dir"))
		}
		api.table.SetSort(key, dir)
	}

	if q.Has("segment") || q.Has("status") || q.Has("last_purchase") || q.Has("birthday") {
		f := tableview.Filters{
			Segment:      q.Get("segment"),
			Status:       domain.Status(q.Get("status")),
			LastPurchase: tableview.PurchaseWindow(q.Get("last_purchase")),
			Anniversary:  tableview.AnniversaryWindow(q.Get("birthday")),
		}
		if f.Status != "" && !f.Status.Valid() {
			return errors.New("unknown status " + string(f.Status))
		}
		if !f.LastPurchase.Valid() {
			return errors.New("unknown last_purchase window " + string(f.LastPurchase))
		}
		if !f.Anniversary.Valid() {
			return errors.New("unknown birthday window " + string(f.Anniversary))
		}
		api.table.SetFilters(f)
	}

	if q.Has("page") || q.Has("page_size") {
		current := api.table.Settings()
		api.table.SetPage(httputil.QueryInt(r, "page", current.Page), httputil.QueryInt(r, "page_size", 0))
	}
	return nil
}

func writeTableError(w http.ResponseWriter, err error) {
	switch {
	case tableview.IsBaseFetchFailure(err):
		httputil.Unavailable(w, CodeBaseFetchFailed, "customer records could not be loaded", retryAfterSeconds)
	case errors.Is(err, tableview.ErrNotLoaded):
		httputil.Unavailable(w, CodeNotLoaded, "customer table not loaded yet", retryAfterSeconds)
	default:
		httputil.InternalError(w, err)
	}
}
