package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/buildco/backend/internal/auth"
	"github.com/example/buildco/backend/internal/models"
)

// APIError is a non-2xx response. Message is the server's error text, verbatim.
type APIError struct {
	Status  int
	Message string
	Fields  []FieldMessage
}

// FieldMessage is one field failure reported by the server.
type FieldMessage struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d", e.Status)
	}
	return e.Message
}

// Is makes a 404 match models.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == models.ErrNotFound && e.Status == http.StatusNotFound
}

// ImageFile is one image to attach to an existing request.
type ImageFile struct {
	Name        string
	Data        []byte
	ImageType   string
	Description string
	UploadedBy  string
}

// Client calls the maintenance API. It is safe for concurrent use; WithToken
// and WithLanguage return copies.
type Client struct {
	baseURL string
	client  *http.Client
	token   string
	lang    string
}

// NewClient constructs a client targeting the provided base URL. Calls time
// out after 15 seconds unless the caller's context ends first.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient swaps the underlying transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.client = hc
	return &cp
}

// WithToken returns a copy that sends the admin bearer token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// WithLanguage returns a copy that asks for messages in lang.
func (c *Client) WithLanguage(lang string) *Client {
	cp := *c
	cp.lang = lang
	return &cp
}

// CreateRequest submits a new maintenance request.
func (c *Client) CreateRequest(ctx context.Context, sub models.Submission) (models.CreateResult, error) {
	var result models.CreateResult
	err := c.doJSON(ctx, http.MethodPost, "/api/maintenance", nil, sub, &result)
	return result, err
}

// UploadImage attaches one image to a request and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, requestID string, img ImageFile) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", img.Name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", err
	}
	fields := map[string]string{
		"requestId":   requestID,
		"imageType":   img.ImageType,
		"description": img.Description,
		"uploadedBy":  img.UploadedBy,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/maintenance/upload", nil, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

// TrackRequest looks a request up by reference number. An unknown reference
// yields an error matching models.ErrNotFound.
func (c *Client) TrackRequest(ctx context.Context, ref string) (*models.MaintenanceRequest, error) {
	var result struct {
		Request models.MaintenanceRequest `json:"request"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/maintenance", url.Values{"ref": {ref}}, nil, &result); err != nil {
		return nil, err
	}
	return &result.Request, nil
}

// ListRequests returns every request, newest first. Requires a token.
func (c *Client) ListRequests(ctx context.Context) ([]models.MaintenanceRequest, error) {
	var result struct {
		Requests []models.MaintenanceRequest `json:"requests"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/maintenance", nil, nil, &result)
	return result.Requests, err
}

// UpdateRequest sends an admin patch and returns the stored request.
func (c *Client) UpdateRequest(ctx context.Context, id uuid.UUID, patch models.RequestPatch) (*models.MaintenanceRequest, error) {
	var result models.MaintenanceRequest
	if err := c.doJSON(ctx, http.MethodPatch, "/api/maintenance/"+id.String(), nil, patch, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRequest fetches one request by id. Requires a token.
func (c *Client) GetRequest(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	var result models.MaintenanceRequest
	if err := c.doJSON(ctx, http.MethodGet, "/api/maintenance/requests/"+id.String(), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetHistory fetches the status history of a request. Requires a token.
func (c *Client) GetHistory(ctx context.Context, id uuid.UUID) ([]models.StatusHistoryEntry, error) {
	var result struct {
		History []models.StatusHistoryEntry `json:"history"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/maintenance/requests/"+id.String()+"/history", nil, nil, &result)
	return result.History, err
}

// GetImages lists the images of a request. Requires a token.
func (c *Client) GetImages(ctx context.Context, id uuid.UUID) ([]models.MaintenanceImage, error) {
	var result struct {
		Images []models.MaintenanceImage `json:"images"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/maintenance/requests/"+id.String()+"/images", nil, nil, &result)
	return result.Images, err
}

// DeleteRequest removes a request with its history and images. Requires a token.
func (c *Client) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/maintenance/requests/"+id.String(), nil, nil, nil)
}

// DeleteImage removes one image. Requires a token.
func (c *Client) DeleteImage(ctx context.Context, id uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/maintenance/images/"+id.String(), nil, nil, nil)
}

// Login exchanges admin credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Token, error) {
	var tok auth.Token
	payload := map[string]string{"email": email, "password": password}
	err := c.doJSON(ctx, http.MethodPost, "/api/admin/login", nil, payload, &tok)
	return tok, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error  string         `json:"error"`
			Fields []FieldMessage `json:"fields"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Message = body.Error
			apiErr.Fields = body.Fields
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
