package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/buildco/backend/internal/auth"
	"github.com/example/buildco/backend/internal/locale"
	"github.com/example/buildco/backend/internal/repository"
	"github.com/example/buildco/backend/internal/service"
	"github.com/example/buildco/backend/internal/storage"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

const submissionJSON = `{
	"client_name": "Ahmed Ali", "client_phone": "0100123456", "client_email": "a@b.com",
	"client_address": "Cairo", "maintenance_type": "repair", "priority": "high",
	"category": "plumbing", "description": "Leak under sink", "preferred_date": "2025-06-01",
	"preferred_time": "morning", "access_notes": "", "contact_person": "Ahmed Ali",
	"contact_phone": "0100123456"
}`

type testEnv struct {
	srv   *Server
	token string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	blobs, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	svc := service.NewMaintenanceService(repository.NewMemoryRepository(), blobs, nil, logger)

	hash, err := auth.HashPassword("pass1234")
	require.NoError(t, err)
	authSvc := auth.NewService("test-secret", time.Hour, auth.Admin{Email: "admin@buildco.test", Name: "Site Admin", PasswordHash: hash})
	tok, err := authSvc.GenerateToken("admin@buildco.test", "Site Admin")
	require.NoError(t, err)

	srv := NewServer(Options{
		Maintenance:  svc,
		Auth:         authSvc,
		UploadDir:    blobs.Dir(),
		UploadPrefix: "/uploads",
		Logger:       logger,
	})
	return testEnv{srv: srv, token: tok.Token}
}

func (e testEnv) do(t *testing.T, method, path, body string, admin bool, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.srv.Engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e testEnv) create(t *testing.T) (ref, id string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/maintenance", submissionJSON, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	return body["referenceNumber"].(string), body["requestId"].(string)
}

func TestHealthz(t *testing.T) {
	w := newTestEnv(t).do(t, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestCreateAndTrack(t *testing.T) {
	env := newTestEnv(t)
	ref, id := env.create(t)
	assert.Regexp(t, `^MR-\d+$`, ref)
	assert.NotEmpty(t, id)

	w := env.do(t, http.MethodGet, "/api/maintenance?ref="+ref, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	req := body["request"].(map[string]any)
	assert.Equal(t, ref, req["reference_number"])
	assert.Equal(t, "pending", req["status"])
	assert.Equal(t, "Ahmed Ali", req["client_name"])
	assert.Equal(t, []any{}, req["maintenance_status_history"])
}

func TestCreate_ValidationIsLocalized(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/maintenance", `{"client_name":"x"}`, false, "Accept-Language", "ar-EG")
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, locale.New(locale.Arabic).T(locale.MsgValidationFailed), body["error"])
	fields := body["fields"].([]any)
	assert.Len(t, fields, 11)
	first := fields[0].(map[string]any)
	assert.Equal(t, "client_phone", first["field"])
	assert.Equal(t, "رقم الهاتف مطلوب", first["message"])

	w = env.do(t, http.MethodPost, "/api/maintenance?lang=en", `not json`, false, "Accept-Language", "ar")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please correct the highlighted fields.", decode(t, w)["error"])
}

func TestTrack_Errors(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/maintenance?ref=%20", "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please enter a reference number.", decode(t, w)["error"])

	w = env.do(t, http.MethodGet, "/api/maintenance?ref=MR-404", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestTrack_HidesAdminFields(t *testing.T) {
	env := newTestEnv(t)
	ref, id := env.create(t)
	w := env.do(t, http.MethodPatch, "/api/maintenance/"+id, `{"status":"assigned"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, http.MethodPatch, "/api/maintenance/"+id,
		`{"assigned_technician":"Omar","estimated_cost":250,"actual_cost":300,"notes":"Customer owes a deposit"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Customer owes a deposit", decode(t, w)["admin_notes"])

	w = env.do(t, http.MethodGet, "/api/maintenance?ref="+ref, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Customer owes a deposit")
	req := decode(t, w)["request"].(map[string]any)
	for _, key := range []string{"admin_notes", "estimated_cost", "actual_cost", "maintenance_images"} {
		assert.NotContains(t, req, key)
	}
	assert.Equal(t, "assigned", req["status"])
	assert.Equal(t, "Omar", req["assigned_technician"])
	assert.Len(t, req["maintenance_status_history"], 1)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	_, id := env.create(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/maintenance"},
		{http.MethodPatch, "/api/maintenance/" + id},
		{http.MethodGet, "/api/maintenance/requests/" + id},
		{http.MethodDelete, "/api/maintenance/requests/" + id},
	} {
		w := env.do(t, tc.method, tc.path, "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}

	w := env.do(t, http.MethodGet, "/api/maintenance", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["requests"], 1)
}

func TestUpdate_StatusAppendsHistory(t *testing.T) {
	env := newTestEnv(t)
	ref, id := env.create(t)

	w := env.do(t, http.MethodPatch, "/api/maintenance/"+id, `{"status":"in_progress"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "in_progress", body["status"])
	assert.Equal(t, ref, body["reference_number"])

	w = env.do(t, http.MethodGet, "/api/maintenance/requests/"+id+"/history", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode(t, w)["history"].([]any)
	require.Len(t, hist, 1)
	entry := hist[0].(map[string]any)
	assert.Equal(t, "pending", entry["old_status"])
	assert.Equal(t, "in_progress", entry["new_status"])
	assert.Equal(t, "Site Admin", entry["changed_by"])
	assert.Equal(t, "Status changed to in_progress", entry["notes"])

	w = env.do(t, http.MethodPatch, "/api/maintenance/"+id, `{"estimated_cost":120.5,"assigned_technician":"Omar"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, 120.5, body["estimated_cost"])
	assert.Equal(t, "in_progress", body["status"])

	w = env.do(t, http.MethodPatch, "/api/maintenance/"+id, `{"estimated_cost":null}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Nil(t, body["estimated_cost"])
	assert.Equal(t, "Omar", body["assigned_technician"])

	w = env.do(t, http.MethodPatch, "/api/maintenance/"+id, `{"status":"archived"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, "/api/maintenance/not-a-uuid", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func uploadBody(t *testing.T, requestID, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("requestId", requestID))
	require.NoError(t, mw.WriteField("imageType", "problem"))
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)
	_, id := env.create(t)

	body, ct := uploadBody(t, id, "leak.png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/maintenance/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	env.srv.Engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	url := decode(t, w)["url"].(string)
	assert.Regexp(t, `^/uploads/`+id+`/.+\.png$`, url)

	w = env.do(t, http.MethodGet, url, "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngBytes, w.Body.Bytes())

	body, ct = uploadBody(t, id, "notes.txt", []byte("hello"))
	req = httptest.NewRequest(http.MethodPost, "/api/maintenance/upload", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	env.srv.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "notes.txt is not an image.", decode(t, w)["error"])

	w = env.do(t, http.MethodGet, "/api/maintenance/requests/"+id+"/images", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	imgs := decode(t, w)["images"].([]any)
	require.Len(t, imgs, 1)
	imgID := imgs[0].(map[string]any)["id"].(string)

	w = env.do(t, http.MethodDelete, "/api/maintenance/images/"+imgID, "", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, url, "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadImage_OversizedBodyRejected(t *testing.T) {
	env := newTestEnv(t)
	_, id := env.create(t)

	data := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, maxUploadBody)...)
	body, ct := uploadBody(t, id, "huge.png", data)
	req := httptest.NewRequest(http.MethodPost, "/api/maintenance/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	env.srv.Engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	assert.Equal(t, "The upload is larger than 5 MB.", decode(t, w)["error"])

	w = env.do(t, http.MethodGet, "/api/maintenance/requests/"+id+"/images", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["images"])
}

func TestDeleteRequest(t *testing.T) {
	env := newTestEnv(t)
	ref, id := env.create(t)

	w := env.do(t, http.MethodDelete, "/api/maintenance/requests/"+id, "", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/api/maintenance?ref="+ref, "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodDelete, "/api/maintenance/requests/"+id, "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/admin/login", `{"email":"admin@buildco.test","password":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/login", `{"email":"admin@buildco.test","password":"pass1234"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["expiresAt"])
}
