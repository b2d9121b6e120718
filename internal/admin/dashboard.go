// Package admin holds the back-office view of maintenance requests: the
// filtered list with stats, and the per-request detail and edit workflow.
package admin

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/example/buildco/backend/internal/models"
)

const filterAll = "all"

// API is the admin side of the maintenance API. *client.Client with a token
// satisfies it.
type API interface {
	ListRequests(ctx context.Context) ([]models.MaintenanceRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error)
	GetHistory(ctx context.Context, id uuid.UUID) ([]models.StatusHistoryEntry, error)
	GetImages(ctx context.Context, id uuid.UUID) ([]models.MaintenanceImage, error)
	UpdateRequest(ctx context.Context, id uuid.UUID, patch models.RequestPatch) (*models.MaintenanceRequest, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// Filter narrows the loaded list. Empty or "all" Status/Priority match everything.
type Filter struct {
	Search   string
	Status   string
	Priority string
}

func matchEnum(want, got string) bool {
	return want == "" || strings.EqualFold(want, filterAll) || want == got
}

// Match reports whether req passes every predicate of f.
func (f Filter) Match(req models.MaintenanceRequest) bool {
	if !matchEnum(f.Status, string(req.Status)) || !matchEnum(f.Priority, string(req.Priority)) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(req.ClientName), q) ||
		strings.Contains(strings.ToLower(req.ReferenceNumber), q) ||
		strings.Contains(strings.ToLower(req.ClientPhone), q)
}

// ApplyFilter returns the requests that match f, preserving order.
func ApplyFilter(reqs []models.MaintenanceRequest, f Filter) []models.MaintenanceRequest {
	out := make([]models.MaintenanceRequest, 0, len(reqs))
	for _, r := range reqs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Stats are the dashboard counters.
type Stats struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
}

// ComputeStats counts over reqs.
func ComputeStats(reqs []models.MaintenanceRequest) Stats {
	s := Stats{Total: len(reqs)}
	for _, r := range reqs {
		switch r.Status {
		case models.StatusPending:
			s.Pending++
		case models.StatusInProgress:
			s.InProgress++
		case models.StatusCompleted:
			s.Completed++
		}
	}
	return s
}

// UpdateResult is the outcome of a status change or save. Request is the
// server's copy and is set only when Err is nil.
type UpdateResult struct {
	Request *models.MaintenanceRequest
	Err     error
}

func (r UpdateResult) OK() bool { return r.Err == nil }

// Detail is everything the detail view shows for one request.
type Detail struct {
	Request *models.MaintenanceRequest
	History []models.StatusHistoryEntry
	Images  []models.MaintenanceImage
}

// Dashboard owns the loaded request list. The list is replaced wholesale on
// refresh and item by item after confirmed updates.
type Dashboard struct {
	api      API
	log      *log.Entry
	mu       sync.RWMutex
	requests []models.MaintenanceRequest
}

// NewDashboard returns an empty dashboard; call Refresh to load requests.
func NewDashboard(api API, logger *log.Logger) *Dashboard {
	return &Dashboard{api: api, log: logger.WithField("component", "admin")}
}

// Refresh reloads the list. On failure the previous list is kept.
func (d *Dashboard) Refresh(ctx context.Context) error {
	reqs, err := d.api.ListRequests(ctx)
	if err != nil {
		d.log.WithError(err).Warn("refresh maintenance list failed")
		return err
	}
	d.mu.Lock()
	d.requests = reqs
	d.mu.Unlock()
	return nil
}

// Requests returns a copy of the loaded list.
func (d *Dashboard) Requests() []models.MaintenanceRequest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.MaintenanceRequest(nil), d.requests...)
}

// Filter applies f to the loaded list without any network call.
func (d *Dashboard) Filter(f Filter) []models.MaintenanceRequest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return ApplyFilter(d.requests, f)
}

// Stats counts over the full loaded list, regardless of filters.
func (d *Dashboard) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return ComputeStats(d.requests)
}

// ChangeStatus saves a new status immediately. Only the status is sent.
func (d *Dashboard) ChangeStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus) UpdateResult {
	return d.apply(ctx, id, models.RequestPatch{Status: &status})
}

// Save sends every field of the edit form in one update.
func (d *Dashboard) Save(ctx context.Context, id uuid.UUID, form EditForm) UpdateResult {
	return d.apply(ctx, id, form.Patch())
}

func (d *Dashboard) apply(ctx context.Context, id uuid.UUID, patch models.RequestPatch) UpdateResult {
	updated, err := d.api.UpdateRequest(ctx, id, patch)
	if err != nil {
		d.log.WithError(err).WithField("request_id", id).Warn("update maintenance request failed")
		return UpdateResult{Err: err}
	}
	d.replace(*updated)
	return UpdateResult{Request: updated}
}

func (d *Dashboard) replace(req models.MaintenanceRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.requests {
		if d.requests[i].ID == req.ID {
			d.requests[i] = req
			return
		}
	}
}

// LoadDetail fetches the request, its history and its images concurrently.
func (d *Dashboard) LoadDetail(ctx context.Context, id uuid.UUID) (Detail, error) {
	var detail Detail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		req, err := d.api.GetRequest(gctx, id)
		detail.Request = req
		return err
	})
	g.Go(func() error {
		hist, err := d.api.GetHistory(gctx, id)
		detail.History = hist
		return err
	})
	g.Go(func() error {
		imgs, err := d.api.GetImages(gctx, id)
		detail.Images = imgs
		return err
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// DeleteImage removes one attachment.
func (d *Dashboard) DeleteImage(ctx context.Context, imageID uuid.UUID) error {
	return d.api.DeleteImage(ctx, imageID)
}

// EditForm is the local state of the detail editor.
type EditForm struct {
	Technician    string
	EstimatedCost string
	ActualCost    string
	Notes         string
}

// FormFor seeds an edit form from a stored request.
func FormFor(req models.MaintenanceRequest) EditForm {
	f := EditForm{Notes: req.AdminNotes}
	if req.AssignedTechnician != nil {
		f.Technician = *req.AssignedTechnician
	}
	if req.EstimatedCost != nil {
		f.EstimatedCost = strconv.FormatFloat(*req.EstimatedCost, 'f', -1, 64)
	}
	if req.ActualCost != nil {
		f.ActualCost = strconv.FormatFloat(*req.ActualCost, 'f', -1, 64)
	}
	return f
}

// Patch converts the form to an update carrying every field. Blank
// technician and cost fields clear the stored value.
func (f EditForm) Patch() models.RequestPatch {
	p := models.RequestPatch{
		EstimatedCost: costValue(f.EstimatedCost),
		ActualCost:    costValue(f.ActualCost),
	}
	if tech := strings.TrimSpace(f.Technician); tech != "" {
		p.AssignedTechnician = models.Some(tech)
	} else {
		p.AssignedTechnician = models.Null[string]()
	}
	notes := f.Notes
	p.Notes = &notes
	return p
}

func costValue(s string) models.Optional[float64] {
	if v := ParseCost(s); v != nil {
		return models.Some(*v)
	}
	return models.Null[float64]()
}

// ParseCost reads a cost field: blank is unset, anything non-numeric is 0.
func ParseCost(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return &v
}
