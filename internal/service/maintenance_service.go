package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/buildco/backend/internal/models"
	"github.com/example/buildco/backend/internal/mq"
	"github.com/example/buildco/backend/internal/repository"
)

var (
	ErrReferenceRequired = stderrors.New("reference number required")
	ErrEmptyImage        = stderrors.New("image is empty")
	ErrImageTooLarge     = stderrors.New("image exceeds 5 MB")
	ErrNotAnImage        = stderrors.New("file is not an image")
	ErrTooManyImages     = stderrors.New("request already has 5 images")
)

const maxReferenceAttempts = 5

// Store is the persistence contract the service needs. It is satisfied by
// repository.MaintenanceRepository and repository.MemoryRepository.
type Store interface {
	CreateRequest(ctx context.Context, req *models.MaintenanceRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error)
	FindByReference(ctx context.Context, ref string) (*models.MaintenanceRequest, error)
	List(ctx context.Context, limit int) ([]models.MaintenanceRequest, error)
	PatchRequest(ctx context.Context, id uuid.UUID, mutate repository.Mutation) (*models.MaintenanceRequest, error)
	DeleteRequest(ctx context.Context, id uuid.UUID) error
	History(ctx context.Context, requestID uuid.UUID) ([]models.StatusHistoryEntry, error)
	CreateImage(ctx context.Context, img *models.MaintenanceImage) error
	Images(ctx context.Context, requestID uuid.UUID) ([]models.MaintenanceImage, error)
	CountImages(ctx context.Context, requestID uuid.UUID) (int64, error)
	FindImage(ctx context.Context, id uuid.UUID) (*models.MaintenanceImage, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// BlobStore keeps uploaded image bytes and hands back a public URL.
type BlobStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// ImageUpload is one attachment sent after a request was created.
type ImageUpload struct {
	RequestID   uuid.UUID
	Filename    string
	Data        []byte
	ImageType   string
	Description string
	UploadedBy  string
}

// MaintenanceService owns the request life cycle: creation with a reference
// number, admin updates with status history, and image attachments.
type MaintenanceService struct {
	store        Store
	blobs        BlobStore
	events       mq.Publisher
	log          *log.Entry
	now          func() time.Time
	newReference ReferenceGenerator
}

// NewMaintenanceService builds a service with dependencies. events may be nil.
func NewMaintenanceService(store Store, blobs BlobStore, events mq.Publisher, logger *log.Logger) *MaintenanceService {
	return &MaintenanceService{
		store:        store,
		blobs:        blobs,
		events:       events,
		log:          logger.WithField("component", "maintenance_service"),
		now:          time.Now,
		newReference: NewReference,
	}
}

// Create validates a submission, assigns a reference number and persists the
// request. A maintenance.created event is published after the write; publish
// failures are logged and never fail the create.
func (s *MaintenanceService) Create(ctx context.Context, sub models.Submission) (*models.MaintenanceRequest, error) {
	if fields := sub.Validate(); len(fields) > 0 {
		return nil, &models.ValidationError{Fields: fields}
	}
	req := sub.ToRequest()

	var err error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		req.ReferenceNumber, err = s.newReference(s.now())
		if err != nil {
			return nil, errors.Wrap(err, "generate reference number")
		}
		err = s.store.CreateRequest(ctx, req)
		if !stderrors.Is(err, repository.ErrDuplicateReference) {
			break
		}
		s.log.WithField("reference", req.ReferenceNumber).Warn("reference number collision, retrying")
	}
	if err != nil {
		return nil, err
	}

	s.log.WithFields(log.Fields{"reference": req.ReferenceNumber, "priority": req.Priority}).Info("maintenance request created")
	s.publish(ctx, models.RequestEvent{Event: models.EventRequestCreated, Request: *req, OccurredAt: s.now().UTC()})
	return req, nil
}

// GetByReference returns the request and its status history for tracking.
func (s *MaintenanceService) GetByReference(ctx context.Context, ref string) (*models.MaintenanceRequest, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrReferenceRequired
	}
	return s.store.FindByReference(ctx, ref)
}

// List returns the newest requests first.
func (s *MaintenanceService) List(ctx context.Context, limit int) ([]models.MaintenanceRequest, error) {
	return s.store.List(ctx, limit)
}

// Get loads one request row without its history or images.
func (s *MaintenanceService) Get(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	return s.store.FindByID(ctx, id)
}

// History returns the status transitions of a request, oldest first.
func (s *MaintenanceService) History(ctx context.Context, id uuid.UUID) ([]models.StatusHistoryEntry, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.History(ctx, id)
}

// Images returns the photos attached to a request.
func (s *MaintenanceService) Images(ctx context.Context, id uuid.UUID) ([]models.MaintenanceImage, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Images(ctx, id)
}

// Update applies an admin patch. A status change appends exactly one history
// entry in the same write; the returned request is re-read from the store.
func (s *MaintenanceService) Update(ctx context.Context, id uuid.UUID, patch models.RequestPatch, actor string) (*models.MaintenanceRequest, error) {
	if fields := validatePatch(patch); len(fields) > 0 {
		return nil, &models.ValidationError{Fields: fields}
	}
	var entry *models.StatusHistoryEntry
	var oldStatus models.RequestStatus
	updated, err := s.store.PatchRequest(ctx, id, func(req *models.MaintenanceRequest) (map[string]any, *models.StatusHistoryEntry, error) {
		entry = nil
		oldStatus = req.Status
		columns := map[string]any{}

		if patch.AssignedTechnician.Set {
			req.AssignedTechnician = nil
			if v := patch.AssignedTechnician.Value; v != nil && strings.TrimSpace(*v) != "" {
				tech := strings.TrimSpace(*v)
				req.AssignedTechnician = &tech
			}
			columns["assigned_technician"] = req.AssignedTechnician
		}
		if patch.EstimatedCost.Set {
			req.EstimatedCost = patch.EstimatedCost.Value
			columns["estimated_cost"] = req.EstimatedCost
		}
		if patch.ActualCost.Set {
			req.ActualCost = patch.ActualCost.Value
			columns["actual_cost"] = req.ActualCost
		}
		if patch.Notes != nil {
			req.AdminNotes = *patch.Notes
			columns["admin_notes"] = req.AdminNotes
		}

		// Status is written only when the patch carries a different one, so a
		// concurrent status change is never overwritten by a stale value.
		if patch.Status != nil && *patch.Status != oldStatus {
			req.Status = *patch.Status
			columns["status"] = req.Status
			note := fmt.Sprintf("Status changed to %s", req.Status)
			if patch.Notes != nil && strings.TrimSpace(*patch.Notes) != "" {
				note = strings.TrimSpace(*patch.Notes)
			}
			entry = &models.StatusHistoryEntry{
				OldStatus: oldStatus,
				NewStatus: req.Status,
				ChangedBy: actor,
				Notes:     note,
			}
		}
		if len(columns) > 0 {
			columns["updated_at"] = s.now().UTC()
		}
		return columns, entry, nil
	})
	if err != nil {
		return nil, err
	}

	if entry != nil {
		s.log.WithFields(log.Fields{
			"reference": updated.ReferenceNumber,
			"from":      oldStatus,
			"to":        updated.Status,
			"by":        actor,
		}).Info("maintenance status changed")
		s.publish(ctx, models.RequestEvent{
			Event:      models.EventStatusChanged,
			Request:    *updated,
			OldStatus:  oldStatus,
			ChangedBy:  actor,
			OccurredAt: s.now().UTC(),
		})
	}
	return updated, nil
}

func validatePatch(p models.RequestPatch) []models.FieldError {
	var fields []models.FieldError
	if p.Status != nil && !p.Status.Valid() {
		fields = append(fields, models.FieldError{Field: "status", Rule: models.RuleInvalid})
	}
	if v := p.EstimatedCost.Value; v != nil && *v < 0 {
		fields = append(fields, models.FieldError{Field: "estimated_cost", Rule: models.RuleInvalid})
	}
	if v := p.ActualCost.Value; v != nil && *v < 0 {
		fields = append(fields, models.FieldError{Field: "actual_cost", Rule: models.RuleInvalid})
	}
	return fields
}

// Delete removes a request, its history and images, then the stored files.
func (s *MaintenanceService) Delete(ctx context.Context, id uuid.UUID) error {
	imgs, err := s.store.Images(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRequest(ctx, id); err != nil {
		return err
	}
	for _, img := range imgs {
		s.removeBlob(ctx, img.ImageURL)
	}
	s.log.WithField("request_id", id).Info("maintenance request deleted")
	return nil
}

// AddImage stores an image for an existing request. Content is sniffed, not
// trusted from the client, and a request holds at most models.MaxImages.
func (s *MaintenanceService) AddImage(ctx context.Context, up ImageUpload) (*models.MaintenanceImage, error) {
	switch {
	case len(up.Data) == 0:
		return nil, ErrEmptyImage
	case len(up.Data) > models.MaxImageBytes:
		return nil, ErrImageTooLarge
	}
	mt := mimetype.Detect(up.Data)
	if !models.IsImageContentType(mt.String()) {
		return nil, ErrNotAnImage
	}

	if _, err := s.store.FindByID(ctx, up.RequestID); err != nil {
		return nil, err
	}
	n, err := s.store.CountImages(ctx, up.RequestID)
	if err != nil {
		return nil, err
	}
	if n >= models.MaxImages {
		return nil, ErrTooManyImages
	}

	name := fmt.Sprintf("%s/%s%s", up.RequestID, uuid.New(), mt.Extension())
	url, err := s.blobs.Save(ctx, name, up.Data)
	if err != nil {
		return nil, errors.Wrap(err, "store image")
	}
	imageType := strings.TrimSpace(up.ImageType)
	if imageType == "" {
		imageType = "problem"
	}
	img := &models.MaintenanceImage{
		RequestID:   up.RequestID,
		ImageURL:    url,
		Description: strings.TrimSpace(up.Description),
		ImageType:   imageType,
		UploadedBy:  strings.TrimSpace(up.UploadedBy),
	}
	if err := s.store.CreateImage(ctx, img); err != nil {
		s.removeBlob(ctx, url)
		return nil, err
	}
	s.log.WithFields(log.Fields{"request_id": up.RequestID, "url": url, "mime": mt.String()}).Info("image attached")
	return img, nil
}

// DeleteImage removes one attachment and its stored file.
func (s *MaintenanceService) DeleteImage(ctx context.Context, id uuid.UUID) error {
	img, err := s.store.FindImage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteImage(ctx, id); err != nil {
		return err
	}
	s.removeBlob(ctx, img.ImageURL)
	return nil
}

func (s *MaintenanceService) removeBlob(ctx context.Context, url string) {
	if err := s.blobs.Delete(ctx, url); err != nil {
		s.log.WithError(err).WithField("url", url).Warn("remove stored image failed")
	}
}

func (s *MaintenanceService) publish(ctx context.Context, evt models.RequestEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt.Event, evt); err != nil {
		s.log.WithError(err).WithField("event", evt.Event).Warn("publish event failed")
	}
}
