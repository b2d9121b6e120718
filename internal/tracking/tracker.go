// Package tracking looks up a maintenance request by its reference number.
package tracking

import (
	"context"
	stderrors "errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/example/buildco/backend/internal/locale"
	"github.com/example/buildco/backend/internal/models"
)

// Status classifies a lookup.
type Status int

const (
	Invalid Status = iota
	Found
	NotFound
	Failed
)

func (s Status) String() string {
	switch s {
	case Invalid:
		return "invalid"
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Reader is the read side of the maintenance API.
type Reader interface {
	TrackRequest(ctx context.Context, ref string) (*models.MaintenanceRequest, error)
}

// Result is one lookup. Request is set only when Status is Found; Message is
// the localized text for every other status.
type Result struct {
	Status  Status
	Request *models.MaintenanceRequest
	Message string
}

// Tracker performs uncached lookups.
type Tracker struct {
	api Reader
	lc  locale.Context
	log *log.Entry
}

// NewTracker returns a tracker that renders messages in lc.
func NewTracker(api Reader, lc locale.Context, logger *log.Logger) *Tracker {
	return &Tracker{api: api, lc: lc, log: logger.WithField("component", "tracking")}
}

// Lookup fetches the request with reference ref. A blank reference never
// reaches the network.
func (t *Tracker) Lookup(ctx context.Context, ref string) Result {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Result{Status: Invalid, Message: t.lc.T(locale.MsgReferenceRequired)}
	}
	req, err := t.api.TrackRequest(ctx, ref)
	switch {
	case err == nil:
		return Result{Status: Found, Request: req}
	case stderrors.Is(err, models.ErrNotFound):
		return Result{Status: NotFound, Message: t.lc.T(locale.MsgNotFound)}
	default:
		t.log.WithError(err).WithField("reference", ref).Warn("tracking lookup failed")
		return Result{Status: Failed, Message: t.lc.T(locale.MsgGenericError)}
	}
}
