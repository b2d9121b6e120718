// Package intake implements the four-step maintenance request wizard: client
// info, request details, scheduling and access info, followed by submission
// and best-effort image upload.
package intake

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/example/buildco/backend/internal/client"
	"github.com/example/buildco/backend/internal/locale"
	"github.com/example/buildco/backend/internal/models"
)

var (
	ErrSubmissionInFlight = stderrors.New("submission already in flight")
	ErrInvalidTransition  = stderrors.New("transition not allowed in current state")
	ErrNoSuchImage        = stderrors.New("no staged image at index")
)

// State is the wizard's position.
type State int

const (
	StepClientInfo State = iota
	StepRequestDetails
	StepScheduling
	StepAccessInfo
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case StepClientInfo:
		return "client_info"
	case StepRequestDetails:
		return "request_details"
	case StepScheduling:
		return "scheduling"
	case StepAccessInfo:
		return "access_info"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) editable() bool {
	return s <= StepAccessInfo || s == Failed
}

// Collaborator is the subset of the API client the wizard needs.
type Collaborator interface {
	CreateRequest(ctx context.Context, sub models.Submission) (models.CreateResult, error)
	UploadImage(ctx context.Context, requestID string, img client.ImageFile) (string, error)
}

// StagedImage is a file picked by the user, held until submission.
type StagedImage struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

func (img StagedImage) size() int64 {
	if img.Size > 0 {
		return img.Size
	}
	return int64(len(img.Data))
}

// ImageRejection explains why one attached file was not staged.
type ImageRejection struct {
	Name    string
	Message string
}

// Outcome is the result of a successful submission.
type Outcome struct {
	ReferenceNumber string
	RequestID       string
	ImagesUploaded  int
	ImagesFailed    int
}

// SubmitError is a rejected or failed submit. Message is what the user should
// see: the server's text when it sent one, a localized message otherwise.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }
func (e *SubmitError) Unwrap() error { return e.Err }

// Wizard holds the form, staged images and current state. All methods are
// safe for concurrent use.
type Wizard struct {
	mu      sync.Mutex
	api     Collaborator
	lc      locale.Context
	log     *log.Entry
	state   State
	form    models.Submission
	images  []StagedImage
	outcome *Outcome
	failure string
	gen     uint64
}

// NewWizard starts at StepClientInfo with an empty form.
func NewWizard(api Collaborator, lc locale.Context, logger *log.Logger) *Wizard {
	return &Wizard{api: api, lc: lc, log: logger.WithField("component", "intake")}
}

// State reports where the wizard is in its step and submit flow.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Form returns a copy of the current form.
func (w *Wizard) Form() models.Submission {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// Update edits the form in place. It is refused while submitting or after success.
func (w *Wizard) Update(fn func(*models.Submission)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.editable() {
		return ErrInvalidTransition
	}
	fn(&w.form)
	return nil
}

func (w *Wizard) validateStep(s State) []models.FieldError {
	switch s {
	case StepClientInfo:
		return w.form.ValidateClientInfo()
	case StepRequestDetails:
		return w.form.ValidateRequestDetails()
	case StepScheduling:
		return w.form.ValidateScheduling()
	case StepAccessInfo:
		return w.form.ValidateAccessInfo()
	}
	return nil
}

// Next validates the current step and advances. On failure the wizard stays
// and the returned *models.ValidationError lists every failing field.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state >= StepAccessInfo {
		return ErrInvalidTransition
	}
	if errs := w.validateStep(w.state); len(errs) > 0 {
		return &models.ValidationError{Fields: errs}
	}
	w.state++
	return nil
}

// Previous goes back one step without validating. From Failed it returns to
// the last step with the form intact.
func (w *Wizard) Previous() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.state == Failed:
		w.state = StepAccessInfo
		w.failure = ""
	case w.state > StepClientInfo && w.state <= StepAccessInfo:
		w.state--
	default:
		return ErrInvalidTransition
	}
	return nil
}

// Reset clears everything and returns to the first step. A submission still
// in flight finishes but no longer affects the wizard.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.state = StepClientInfo
	w.form = models.Submission{}
	w.images = nil
	w.outcome = nil
	w.failure = ""
}

// AttachImages stages valid files and reports a localized rejection for each
// invalid one.
func (w *Wizard) AttachImages(files ...StagedImage) []ImageRejection {
	w.mu.Lock()
	defer w.mu.Unlock()
	var rejected []ImageRejection
	for _, f := range files {
		switch {
		case !w.state.editable():
			rejected = append(rejected, ImageRejection{Name: f.Name, Message: w.lc.T(locale.MsgStepIncomplete)})
		case !models.IsImageContentType(f.ContentType):
			rejected = append(rejected, ImageRejection{Name: f.Name, Message: w.lc.T(locale.MsgImageNotImage, f.Name)})
		case f.size() > models.MaxImageBytes:
			rejected = append(rejected, ImageRejection{Name: f.Name, Message: w.lc.T(locale.MsgImageTooLarge, f.Name)})
		case len(w.images) >= models.MaxImages:
			rejected = append(rejected, ImageRejection{Name: f.Name, Message: w.lc.T(locale.MsgTooManyImages)})
		default:
			w.images = append(w.images, f)
		}
	}
	return rejected
}

// RemoveImage drops the staged image at index.
func (w *Wizard) RemoveImage(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.editable() {
		return ErrInvalidTransition
	}
	if index < 0 || index >= len(w.images) {
		return ErrNoSuchImage
	}
	w.images = append(w.images[:index], w.images[index+1:]...)
	return nil
}

// Images returns the staged images.
func (w *Wizard) Images() []StagedImage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]StagedImage(nil), w.images...)
}

// ResponseTime is the localized response expectation for the chosen priority.
func (w *Wizard) ResponseTime() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lc.ResponseTime(models.Priority(w.form.Priority))
}

// Messages renders validation errors for display.
func (w *Wizard) Messages(errs []models.FieldError) []string {
	return w.lc.FieldMessages(errs)
}

// Outcome returns the last successful submission, if any.
func (w *Wizard) Outcome() (Outcome, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.outcome == nil {
		return Outcome{}, false
	}
	return *w.outcome, true
}

// FailureMessage is the message shown in the Failed state.
func (w *Wizard) FailureMessage() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failure
}

// Submit re-validates all four steps and creates the request. Staged images
// are uploaded afterwards; their failures are counted, never returned.
func (w *Wizard) Submit(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	switch w.state {
	case Submitting:
		w.mu.Unlock()
		return Outcome{}, &SubmitError{Message: w.lc.T(locale.MsgSubmitInFlight), Err: ErrSubmissionInFlight}
	case StepAccessInfo, Failed:
	default:
		w.mu.Unlock()
		return Outcome{}, ErrInvalidTransition
	}
	if errs := w.form.Validate(); len(errs) > 0 {
		w.mu.Unlock()
		return Outcome{}, &models.ValidationError{Fields: errs}
	}
	w.state = Submitting
	w.failure = ""
	form := w.form
	images := append([]StagedImage(nil), w.images...)
	gen := w.gen
	w.mu.Unlock()

	res, err := w.api.CreateRequest(ctx, form)
	if err != nil {
		serr := &SubmitError{Message: w.lc.T(locale.MsgGenericError), Err: err}
		var apiErr *client.APIError
		if stderrors.As(err, &apiErr) && apiErr.Message != "" {
			serr.Message = apiErr.Message
		}
		w.log.WithError(err).Warn("maintenance request submission failed")
		w.finish(gen, func() {
			w.state = Failed
			w.failure = serr.Message
		})
		return Outcome{}, serr
	}

	out := Outcome{ReferenceNumber: res.ReferenceNumber, RequestID: res.RequestID}
	out.ImagesUploaded, out.ImagesFailed = w.uploadImages(ctx, res.RequestID, form.ClientName, images)

	w.finish(gen, func() {
		w.state = Succeeded
		w.outcome = &out
	})
	return out, nil
}

func (w *Wizard) finish(gen uint64, apply func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen == gen {
		apply()
	}
}

func (w *Wizard) uploadImages(ctx context.Context, requestID, uploadedBy string, images []StagedImage) (int, int) {
	var uploaded, failed int64
	var g errgroup.Group
	for _, img := range images {
		img := img
		g.Go(func() error {
			_, err := w.api.UploadImage(ctx, requestID, client.ImageFile{
				Name:       img.Name,
				Data:       img.Data,
				ImageType:  "problem",
				UploadedBy: uploadedBy,
			})
			if err != nil {
				atomic.AddInt64(&failed, 1)
				w.log.WithError(err).WithFields(log.Fields{"request_id": requestID, "file": img.Name}).Warn("image upload failed")
				return nil
			}
			atomic.AddInt64(&uploaded, 1)
			return nil
		})
	}
	_ = g.Wait()
	return int(uploaded), int(failed)
}
