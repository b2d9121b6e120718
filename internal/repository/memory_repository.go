package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/buildco/backend/internal/models"
)

// MemoryRepository keeps requests in process memory. It backs STORE_DRIVER=memory
// and the package tests; it honours the same contracts as MaintenanceRepository.
type MemoryRepository struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]models.MaintenanceRequest
	byRef    map[string]uuid.UUID
	history  map[uuid.UUID][]models.StatusHistoryEntry
	images   map[uuid.UUID]models.MaintenanceImage
	now      func() time.Time
}

// NewMemoryRepository returns an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		requests: make(map[uuid.UUID]models.MaintenanceRequest),
		byRef:    make(map[string]uuid.UUID),
		history:  make(map[uuid.UUID][]models.StatusHistoryEntry),
		images:   make(map[uuid.UUID]models.MaintenanceImage),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryRepository) CreateRequest(ctx context.Context, req *models.MaintenanceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byRef[req.ReferenceNumber]; exists {
		return ErrDuplicateReference
	}
	if err := req.BeforeCreate(nil); err != nil {
		return err
	}
	now := m.now()
	req.CreatedAt, req.UpdatedAt = now, now
	stored := *req
	stored.History, stored.Images = nil, nil
	m.requests[req.ID] = stored
	m.byRef[req.ReferenceNumber] = req.ID
	return nil
}

func (m *MemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (m *MemoryRepository) FindByReference(ctx context.Context, ref string) (*models.MaintenanceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRef[ref]
	if !ok {
		return nil, ErrNotFound
	}
	req := m.requests[id]
	req.History = append([]models.StatusHistoryEntry(nil), m.history[id]...)
	return &req, nil
}

func (m *MemoryRepository) List(ctx context.Context, limit int) ([]models.MaintenanceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.MaintenanceRequest, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, req)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PatchRequest applies mutate to the stored copy while holding the write lock,
// so concurrent patches see each other's changes. Only the mutated struct is
// kept; the column map is for SQL stores.
func (m *MemoryRepository) PatchRequest(ctx context.Context, id uuid.UUID, mutate Mutation) (*models.MaintenanceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := current
	_, entry, err := mutate(&working)
	if err != nil {
		return nil, err
	}
	now := m.now()
	working.ID = current.ID
	working.ReferenceNumber = current.ReferenceNumber
	working.CreatedAt = current.CreatedAt
	working.UpdatedAt = now
	working.History, working.Images = nil, nil
	if entry != nil {
		entry.RequestID = id
		if err := entry.BeforeCreate(nil); err != nil {
			return nil, err
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		m.history[id] = append(m.history[id], *entry)
	}
	m.requests[id] = working
	out := working
	return &out, nil
}

func (m *MemoryRepository) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.requests, id)
	delete(m.byRef, req.ReferenceNumber)
	delete(m.history, id)
	for imgID, img := range m.images {
		if img.RequestID == id {
			delete(m.images, imgID)
		}
	}
	return nil
}

func (m *MemoryRepository) History(ctx context.Context, requestID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.StatusHistoryEntry(nil), m.history[requestID]...), nil
}

func (m *MemoryRepository) CreateImage(ctx context.Context, img *models.MaintenanceImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[img.RequestID]; !ok {
		return ErrNotFound
	}
	if err := img.BeforeCreate(nil); err != nil {
		return err
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = m.now()
	}
	m.images[img.ID] = *img
	return nil
}

func (m *MemoryRepository) Images(ctx context.Context, requestID uuid.UUID) ([]models.MaintenanceImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.MaintenanceImage
	for _, img := range m.images {
		if img.RequestID == requestID {
			out = append(out, img)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) CountImages(ctx context.Context, requestID uuid.UUID) (int64, error) {
	imgs, err := m.Images(ctx, requestID)
	return int64(len(imgs)), err
}

func (m *MemoryRepository) FindImage(ctx context.Context, id uuid.UUID) (*models.MaintenanceImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.images[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &img, nil
}

func (m *MemoryRepository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[id]; !ok {
		return ErrNotFound
	}
	delete(m.images, id)
	return nil
}
