package http

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/buildco/backend/internal/auth"
	"github.com/example/buildco/backend/internal/locale"
	"github.com/example/buildco/backend/internal/models"
	"github.com/example/buildco/backend/internal/service"
)

const ctxUploadName = "upload_filename"

// maxUploadBody caps a whole multipart upload: one image plus form fields.
const maxUploadBody = models.MaxImageBytes + 1<<20

// trackedRequest is what the public tracking lookup shows: no admin notes
// and no costs. History is always an array, even when it is empty.
type trackedRequest struct {
	ID                 uuid.UUID                   `json:"id"`
	ReferenceNumber    string                      `json:"reference_number"`
	ClientName         string                      `json:"client_name"`
	ClientPhone        string                      `json:"client_phone"`
	ClientEmail        string                      `json:"client_email"`
	ClientAddress      string                      `json:"client_address"`
	MaintenanceType    models.MaintenanceType      `json:"maintenance_type"`
	Category           models.Category             `json:"category"`
	Priority           models.Priority             `json:"priority"`
	Description        string                      `json:"description"`
	PreferredDate      string                      `json:"preferred_date"`
	PreferredTime      models.TimeSlot             `json:"preferred_time"`
	Status             models.RequestStatus        `json:"status"`
	AssignedTechnician *string                     `json:"assigned_technician"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
	History            []models.StatusHistoryEntry `json:"maintenance_status_history"`
}

func newTrackedRequest(req *models.MaintenanceRequest) trackedRequest {
	history := req.History
	if history == nil {
		history = []models.StatusHistoryEntry{}
	}
	return trackedRequest{
		ID:                 req.ID,
		ReferenceNumber:    req.ReferenceNumber,
		ClientName:         req.ClientName,
		ClientPhone:        req.ClientPhone,
		ClientEmail:        req.ClientEmail,
		ClientAddress:      req.ClientAddress,
		MaintenanceType:    req.MaintenanceType,
		Category:           req.Category,
		Priority:           req.Priority,
		Description:        req.Description,
		PreferredDate:      req.PreferredDate,
		PreferredTime:      req.PreferredTime,
		Status:             req.Status,
		AssignedTechnician: req.AssignedTechnician,
		CreatedAt:          req.CreatedAt,
		UpdatedAt:          req.UpdatedAt,
		History:            history,
	}
}

type fieldMessage struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// fail maps a service error to a status code and a localized body. Unexpected
// errors are logged with their stack and hidden from the caller.
func (s *Server) fail(c *gin.Context, err error) {
	lc := localeOf(c)
	var verr *models.ValidationError
	switch {
	case stderrors.As(err, &verr):
		fields := make([]fieldMessage, 0, len(verr.Fields))
		for _, fe := range verr.Fields {
			fields = append(fields, fieldMessage{Field: fe.Field, Rule: fe.Rule, Message: lc.FieldMessage(fe)})
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": lc.T(locale.MsgValidationFailed), "fields": fields})
	case stderrors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": lc.T(locale.MsgNotFound)})
	case stderrors.Is(err, service.ErrReferenceRequired):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": lc.T(locale.MsgReferenceRequired)})
	case stderrors.Is(err, service.ErrNotAnImage), stderrors.Is(err, service.ErrEmptyImage):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": lc.T(locale.MsgImageNotImage, c.GetString(ctxUploadName))})
	case stderrors.Is(err, service.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": lc.T(locale.MsgImageTooLarge, c.GetString(ctxUploadName))})
	case stderrors.Is(err, service.ErrTooManyImages):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": lc.T(locale.MsgTooManyImages)})
	default:
		s.log.WithField("path", c.Request.URL.Path).Errorf("unexpected error: %+v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": lc.T(locale.MsgGenericError)})
	}
}

func (s *Server) badRequest(c *gin.Context, key string, args ...any) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": localeOf(c).T(key, args...)})
}

func (s *Server) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.badRequest(c, locale.MsgInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) createRequest(c *gin.Context) {
	var payload models.Submission
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.badRequest(c, locale.MsgValidationFailed)
		return
	}
	req, err := s.maintenance.Create(c.Request.Context(), payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":         true,
		"referenceNumber": req.ReferenceNumber,
		"requestId":       req.ID.String(),
	})
}

// getMaintenance serves both the public tracking lookup (?ref=) and the admin
// list (no ref, bearer token required).
func (s *Server) getMaintenance(c *gin.Context) {
	if ref, ok := c.GetQuery("ref"); ok {
		s.trackRequest(c, ref)
		return
	}
	s.requireAdmin()(c)
	if c.IsAborted() {
		return
	}
	s.listRequests(c)
}

func (s *Server) trackRequest(c *gin.Context, ref string) {
	req, err := s.maintenance.GetByReference(c.Request.Context(), ref)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "request": newTrackedRequest(req)})
}

func (s *Server) listRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	reqs, err := s.maintenance.List(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if reqs == nil {
		reqs = []models.MaintenanceRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (s *Server) updateRequest(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	var patch models.RequestPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.badRequest(c, locale.MsgValidationFailed)
		return
	}
	req, err := s.maintenance.Update(c.Request.Context(), id, patch, actorOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) getRequest(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	req, err := s.maintenance.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) getHistory(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	hist, err := s.maintenance.History(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if hist == nil {
		hist = []models.StatusHistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": hist})
}

func (s *Server) getImages(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	imgs, err := s.maintenance.Images(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if imgs == nil {
		imgs = []models.MaintenanceImage{}
	}
	c.JSON(http.StatusOK, gin.H{"images": imgs})
}

func (s *Server) deleteRequest(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	if err := s.maintenance.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteImage(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	if err := s.maintenance.DeleteImage(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) uploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)
	if err := c.Request.ParseMultipartForm(s.Engine.MaxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) || c.Request.ContentLength > maxUploadBody {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": localeOf(c).T(locale.MsgUploadTooLarge)})
			return
		}
		s.badRequest(c, locale.MsgImageMissing)
		return
	}
	requestID, err := uuid.Parse(c.PostForm("requestId"))
	if err != nil {
		s.badRequest(c, locale.MsgInvalidID)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		s.badRequest(c, locale.MsgImageMissing)
		return
	}
	c.Set(ctxUploadName, fh.Filename)
	if fh.Size > models.MaxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": localeOf(c).T(locale.MsgImageTooLarge, fh.Filename)})
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, models.MaxImageBytes+1))
	if err != nil {
		s.fail(c, err)
		return
	}

	img, err := s.maintenance.AddImage(c.Request.Context(), service.ImageUpload{
		RequestID:   requestID,
		Filename:    fh.Filename,
		Data:        data,
		ImageType:   c.PostForm("imageType"),
		Description: c.PostForm("description"),
		UploadedBy:  c.PostForm("uploadedBy"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "url": img.ImageURL, "image": img})
}

func (s *Server) login(c *gin.Context) {
	var payload struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.badRequest(c, locale.MsgInvalidCredentials)
		return
	}
	tok, err := s.auth.Login(payload.Email, payload.Password)
	if err != nil {
		if stderrors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": localeOf(c).T(locale.MsgInvalidCredentials)})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}
