package tableview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/crm-quality/internal/customers"
	"github.com/ignite/crm-quality/internal/domain"
	"github.com/ignite/crm-quality/internal/pkg/logger"
)

// LoadStatus is the lifecycle of the loaded row set.
type LoadStatus string

const (
	StatusIdle    LoadStatus = "idle"
	StatusLoading LoadStatus = "loading"
	StatusReady   LoadStatus = "ready"
	StatusFailed  LoadStatus = "failed"
)

// Loader produces a fresh row set. *customers.Composer implements it.
type Loader interface {
	Build(ctx context.Context, filter domain.CustomerFilter) ([]customers.Row, error)
}

// Settings is a copy of the interactive settings.
type Settings struct {
	Search    string    `json:"search"`
	SortKey   SortKey   `json:"sort"`
	Direction Direction `json:"dir"`
	Filters   Filters   `json:"filters"`
	Page      int       `json:"page"`
	PageSize  int       `json:"page_size"`
	Columns   []Column  `json:"columns"`
}

// View is the projected, filtered, sorted and paginated table.
type View struct {
	Settings
	Rows       []ProjectedRow `json:"rows"`
	Matched    int            `json:"matched"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
	Status     LoadStatus     `json:"status"`
	LoadedAt   time.Time      `json:"loaded_at"`
	// Stale is set when the last refresh failed and the rows shown are
	// from an earlier load.
	Stale     bool   `json:"stale,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// State owns the table settings and the last loaded rows.
type State struct {
	loader Loader
	filter domain.CustomerFilter

	refreshMu sync.Mutex

	mu       sync.RWMutex
	search   string
	sortKey  SortKey
	dir      Direction
	filters  Filters
	page     int
	pageSize int
	visible  map[Column]bool
	rows     []customers.Row
	status   LoadStatus
	lastErr  error
	loadedAt time.Time
}

// NewState creates an idle state. The default sort is last purchase,
// newest first, with every column visible.
func NewState(loader Loader, filter domain.CustomerFilter, pageSize int) *State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	visible := make(map[Column]bool, len(Columns))
	for _, c := range Columns {
		visible[c] = true
	}
	return &State{
		loader:   loader,
		filter:   filter,
		sortKey:  SortLastPurchase,
		dir:      Desc,
		page:     1,
		pageSize: pageSize,
		visible:  visible,
		status:   StatusIdle,
	}
}

// SetSearchTerm replaces the search term and resets to the first page.
func (s *State) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = term
	s.page = 1
}

// SetSort sets the sort key and direction. An unknown key is stored as is
// and sorts nothing.
func (s *State) SetSort(key SortKey, dir Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortKey = key
	s.dir = dir
}

// ToggleSort flips the direction when key is already active, otherwise
// selects key descending.
func (s *State) ToggleSort(key SortKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sortKey == key {
		if s.dir == Asc {
			s.dir = Desc
		} else {
			s.dir = Asc
		}
		return
	}
	s.sortKey = key
	s.dir = Desc
}

// ToggleColumn flips the visibility of c and returns the new visibility.
func (s *State) ToggleColumn(c Column) (bool, error) {
	if !c.Valid() {
		return false, ErrUnknownColumn
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible[c] = !s.visible[c]
	return s.visible[c], nil
}

// SetFilters replaces the extra filters and resets to the first page.
func (s *State) SetFilters(f Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
	s.page = 1
}

// SetPage selects the 1-based page. A non-positive size keeps the current one.
func (s *State) SetPage(page, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 {
		page = 1
	}
	s.page = page
	if size > 0 {
		s.pageSize = size
	}
}

// Settings returns a copy of the current settings.
func (s *State) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settingsLocked()
}

func (s *State) settingsLocked() Settings {
	return Settings{
		Search:    s.search,
		SortKey:   s.sortKey,
		Direction: s.dir,
		Filters:   s.filters,
		Page:      s.page,
		PageSize:  s.pageSize,
		Columns:   visibleInOrder(s.visible),
	}
}

// Refresh rebuilds the row set. Concurrent calls are serialized.
//
// A base fetch failure keeps the previously loaded rows, marks the state
// failed and returns the error. A cancelled compose still stores the rows it
// produced and returns ctx.Err().
func (s *State) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	s.status = StatusLoading
	s.mu.Unlock()

	start := time.Now()
	rows, err := s.loader.Build(ctx, s.filter)

	s.mu.Lock()
	defer s.mu.Unlock()
	if rows == nil && err != nil {
		s.status = StatusFailed
		s.lastErr = err
		logger.Error("customer table refresh failed", "error", err)
		return err
	}
	s.rows = rows
	s.status = StatusReady
	s.lastErr = nil
	s.loadedAt = time.Now()
	logger.Info("customer table refreshed", "rows", len(rows), "duration_ms", time.Since(start).Milliseconds())
	return err
}

// Status reports the load status and the last refresh error.
func (s *State) Status() (LoadStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.lastErr
}

// Rows returns the loaded rows with search, filters and sort applied,
// before pagination.
func (s *State) Rows() []customers.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Sort(Apply(s.rows, s.search, s.filters), s.sortKey, s.dir)
}

// Loaded returns every loaded row in composition order.
func (s *State) Loaded() []customers.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]customers.Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Projection renders the current page. It fails with the last refresh error
// when nothing was ever loaded, or ErrNotLoaded before the first refresh.
func (s *State) Projection() (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.rows == nil {
		if s.lastErr != nil {
			return View{}, s.lastErr
		}
		return View{}, ErrNotLoaded
	}

	settings := s.settingsLocked()
	matched := Sort(Apply(s.rows, s.search, s.filters), s.sortKey, s.dir)
	page := Paginate(matched, s.page, s.pageSize)

	v := View{
		Settings:   settings,
		Rows:       Project(page.Rows, settings.Columns),
		Matched:    len(matched),
		Total:      len(s.rows),
		TotalPages: page.TotalPages,
		Status:     s.status,
		LoadedAt:   s.loadedAt,
	}
	if s.status == StatusFailed && s.lastErr != nil {
		v.Stale = true
		v.LastError = s.lastErr.Error()
	}
	return v, nil
}

// IsBaseFetchFailure reports whether err came from the base record fetch.
func IsBaseFetchFailure(err error) bool {
	return errors.Is(err, customers.ErrBaseFetch)
}
