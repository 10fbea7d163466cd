package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"tenant-onboarding-service/internal/config"
	"tenant-onboarding-service/internal/models"
)

// ErrBackendUnavailable is returned while the circuit breaker is open
var ErrBackendUnavailable = errors.New("property backend unavailable")

// maxSpotPages bounds the pagination walk of the parking lookup
const maxSpotPages = 20

// RemoteError is a non-2xx response from the property backend
type RemoteError struct {
	Operation  string `json:"operation"`
	StatusCode int    `json:"status_code"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s failed with status %d (%s): %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// IsRemoteError checks if an error is a RemoteError
func IsRemoteError(err error) (*RemoteError, bool) {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr, true
	}
	return nil, false
}

// Page is the paginated collection envelope of the backend
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// FilePart is a file sent in a multipart request
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Data        []byte
}

// Blob is a binary download
type Blob struct {
	ContentType string
	FileName    string
	Data        []byte
}

// BackendClient talks to the property management REST API
type BackendClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewBackendClient creates a new backend client
func NewBackendClient(cfg config.BackendConfig, logger *logrus.Logger) *BackendClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openFor := cfg.BreakerTimeout
	if openFor == 0 {
		openFor = 30 * time.Second
	}

	c := &BackendClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "property-backend",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 4xx answers are business outcomes, not backend failures
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if remoteErr, ok := IsRemoteError(err); ok {
				return remoteErr.StatusCode < 500
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from":            from.String(),
				"to":              to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return c
}

// BreakerState reports the circuit breaker state for readiness checks
func (c *BackendClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// CreateTenant submits the onboarding payload with its files as multipart/form-data
func (c *BackendClient) CreateTenant(ctx context.Context, payload *models.CreateTenantPayload, files []FilePart) (*models.Tenant, error) {
	tenantJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tenant payload: %w", err)
	}

	body, contentType, err := buildMultipart(map[string][]byte{"tenant": tenantJSON}, nil, files)
	if err != nil {
		return nil, err
	}

	respBody, _, err := c.do(ctx, "create tenant", http.MethodPost, "/v1/tenants", body, contentType)
	if err != nil {
		return nil, err
	}

	var env dataEnvelope[models.Tenant]
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tenant response: %w", err)
	}
	return &env.Data, nil
}

// ListParkingSpots returns one page of parking spots for a property
func (c *BackendClient) ListParkingSpots(ctx context.Context, propertyID string, status models.ParkingSpotStatus, page, size int) (*Page[models.ParkingSpot], error) {
	q := url.Values{}
	q.Set("propertyId", propertyID)
	if status != "" {
		q.Set("status", string(status))
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	respBody, _, err := c.do(ctx, "list parking spots", http.MethodGet, "/v1/parking-spots?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}

	var result Page[models.ParkingSpot]
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parking spots: %w", err)
	}
	return &result, nil
}

// AvailableParkingSpots walks every page and keeps only AVAILABLE spots
func (c *BackendClient) AvailableParkingSpots(ctx context.Context, propertyID string) ([]models.ParkingSpot, error) {
	spots := make([]models.ParkingSpot, 0)
	for page := 0; page < maxSpotPages; page++ {
		result, err := c.ListParkingSpots(ctx, propertyID, models.ParkingSpotAvailable, page, 100)
		if err != nil {
			return nil, err
		}
		for _, s := range result.Content {
			if s.Status == models.ParkingSpotAvailable {
				spots = append(spots, s)
			}
		}
		if page+1 >= result.TotalPages {
			break
		}
	}
	return spots, nil
}

// UploadDocument uploads a standalone document with its metadata
func (c *BackendClient) UploadDocument(ctx context.Context, meta *models.DocumentUpload, file FilePart) (*models.Document, error) {
	fields := map[string]string{
		"entityType":   meta.EntityType,
		"entityId":     meta.EntityID,
		"documentType": meta.DocumentType,
		"title":        meta.Title,
		"description":  meta.Description,
		"expiryDate":   meta.ExpiryDate,
	}
	file.Field = "file"

	body, contentType, err := buildMultipart(nil, fields, []FilePart{file})
	if err != nil {
		return nil, err
	}

	respBody, _, err := c.do(ctx, "upload document", http.MethodPost, "/v1/documents", body, contentType)
	if err != nil {
		return nil, err
	}

	var env dataEnvelope[models.Document]
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document response: %w", err)
	}
	return &env.Data, nil
}

// CreateQuotation creates a quotation for a lead
func (c *BackendClient) CreateQuotation(ctx context.Context, q *models.Quotation) (models.JSONB, error) {
	return c.sendJSON(ctx, "create quotation", http.MethodPost, "/v1/quotations", q)
}

// CreateExpense records a property expense
func (c *BackendClient) CreateExpense(ctx context.Context, e *models.ExpenseCreate) (models.JSONB, error) {
	return c.sendJSON(ctx, "create expense", http.MethodPost, "/v1/expenses", e)
}

// CreatePDCBulk registers a batch of post-dated cheques
func (c *BackendClient) CreatePDCBulk(ctx context.Context, b *models.PDCBulkCreate) (models.JSONB, error) {
	return c.sendJSON(ctx, "create pdc batch", http.MethodPost, "/v1/pdcs/bulk", b)
}

// WithdrawPDC withdraws a cheque
func (c *BackendClient) WithdrawPDC(ctx context.Context, pdcID string, w *models.PDCWithdrawal) (models.JSONB, error) {
	return c.sendJSON(ctx, "withdraw pdc", http.MethodPost, "/v1/pdcs/"+url.PathEscape(pdcID)+"/withdraw", w)
}

// UpdatePDCStatus moves a cheque to a new status
func (c *BackendClient) UpdatePDCStatus(ctx context.Context, pdcID string, s *models.PDCStatusUpdate) (models.JSONB, error) {
	return c.sendJSON(ctx, "update pdc status", http.MethodPatch, "/v1/pdcs/"+url.PathEscape(pdcID)+"/status", s)
}

// DownloadInvoicePDF fetches an invoice PDF
func (c *BackendClient) DownloadInvoicePDF(ctx context.Context, invoiceID string) (*Blob, error) {
	respBody, header, err := c.do(ctx, "download invoice", http.MethodGet, "/v1/invoices/"+url.PathEscape(invoiceID)+"/pdf", nil, "")
	if err != nil {
		return nil, err
	}

	blob := &Blob{
		ContentType: header.Get("Content-Type"),
		FileName:    fmt.Sprintf("invoice-%s.pdf", invoiceID),
		Data:        respBody,
	}
	if blob.ContentType == "" {
		blob.ContentType = "application/pdf"
	}
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		blob.FileName = params["filename"]
	}
	return blob, nil
}

// DeleteProperty deletes a property; the backend refuses while units are occupied
func (c *BackendClient) DeleteProperty(ctx context.Context, propertyID string) error {
	_, _, err := c.do(ctx, "delete property", http.MethodDelete, "/v1/properties/"+url.PathEscape(propertyID), nil, "")
	return err
}

func (c *BackendClient) sendJSON(ctx context.Context, op, method, path string, payload interface{}) (models.JSONB, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, _, err := c.do(ctx, op, method, path, bytes.NewReader(jsonBody), "application/json")
	if err != nil {
		return nil, err
	}
	if len(respBody) == 0 {
		return nil, nil
	}

	var env dataEnvelope[models.JSONB]
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s response: %w", op, err)
	}
	return env.Data, nil
}

type rawResponse struct {
	body   []byte
	header http.Header
}

func (c *BackendClient) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) ([]byte, http.Header, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}
		if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
			req.Header.Set("X-Request-ID", requestID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send %s request: %w", op, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", op, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, decodeRemoteError(op, resp.StatusCode, respBody)
		}
		return &rawResponse{body: respBody, header: resp.Header}, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, op)
		}
		c.logger.WithFields(logrus.Fields{
			"operation": op,
			"method":    method,
			"path":      path,
		}).WithError(err).Warn("Backend request failed")
		return nil, nil, err
	}

	raw := result.(*rawResponse)
	return raw.body, raw.header, nil
}

type contextKey string

// RequestIDKey carries the inbound request ID to outgoing backend calls
const RequestIDKey contextKey = "request_id"

func decodeRemoteError(op string, status int, body []byte) *RemoteError {
	remoteErr := &RemoteError{Operation: op, StatusCode: status}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		remoteErr.Code = env.Code
		remoteErr.Message = env.Message
		if remoteErr.Message == "" {
			remoteErr.Message = env.Error
		}
	}
	if remoteErr.Message == "" {
		remoteErr.Message = http.StatusText(status)
	}
	return remoteErr
}

func buildMultipart(jsonParts map[string][]byte, fields map[string]string, files []FilePart) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for name, data := range jsonParts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", formDisposition(name, ""))
		h.Set("Content-Type", "application/json")
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create %s part: %w", name, err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("failed to write %s part: %w", name, err)
		}
	}

	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", formDisposition(f.Field, f.FileName))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// formDisposition quotes and escapes the part name and file name
func formDisposition(name, fileName string) string {
	params := map[string]string{"name": name}
	if fileName != "" {
		params["filename"] = fileName
	}
	return mime.FormatMediaType("form-data", params)
}
