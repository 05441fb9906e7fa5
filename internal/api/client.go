package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/vogiaan1904/clinicqueue-sync/config"
	"github.com/vogiaan1904/clinicqueue-sync/internal/errors"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 4 << 20

// Client is the typed view of the clinic REST API.
type Client interface {
	FetchQueues(ctx context.Context, departmentID, doctorID string) ([]models.DoctorQueueState, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	ListDoctors(ctx context.Context, departmentID string) ([]models.Doctor, error)
	UpdateTokenStatus(ctx context.Context, in UpdateTokenStatusInput) (*models.Token, error)
	UpdatePriority(ctx context.Context, in UpdatePriorityInput) (*models.Token, error)
}

type httpClient struct {
	base   *url.URL
	hc     *http.Client
	cookie string
	l      logger.Logger
}

// NewHTTPClient builds a Client for cfg.BaseURL. jar may be nil; when set it
// carries the session cookie issued by the identity provider.
func NewHTTPClient(cfg config.APIConfig, jar http.CookieJar, l logger.Logger) (Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api.NewHTTPClient: %w", err)
	}

	return &httpClient{
		base: base,
		hc: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Jar:       jar,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cookie: cfg.SessionCookie,
		l:      l,
	}, nil
}

func (c *httpClient) FetchQueues(ctx context.Context, departmentID, doctorID string) ([]models.DoctorQueueState, error) {
	q := url.Values{}
	if departmentID != "" && departmentID != models.AllDepartments {
		q.Set("departmentId", departmentID)
	}
	if doctorID != "" {
		q.Set("doctorId", doctorID)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/queue", q, nil, &raw); err != nil {
		return nil, err
	}

	dtos, err := oneOrMany[queueDTO](raw)
	if err != nil {
		return nil, errors.NewRequestError(http.MethodGet, "/queue", 0, "decode queue payload: "+err.Error())
	}

	out := make([]models.DoctorQueueState, 0, len(dtos))
	for _, d := range dtos {
		st := d.toState()
		if st.DoctorID == "" {
			st.DoctorID = doctorID
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *httpClient) ListDepartments(ctx context.Context) ([]models.Department, error) {
	var out []models.Department
	if err := c.do(ctx, http.MethodGet, "/departments", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) ListDoctors(ctx context.Context, departmentID string) ([]models.Doctor, error) {
	q := url.Values{}
	if departmentID != "" && departmentID != models.AllDepartments {
		q.Set("departmentId", departmentID)
	}

	var out []models.Doctor
	if err := c.do(ctx, http.MethodGet, "/doctors", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) UpdateTokenStatus(ctx context.Context, in UpdateTokenStatusInput) (*models.Token, error) {
	var out models.Token
	if err := c.do(ctx, http.MethodPut, "/tokens", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) UpdatePriority(ctx context.Context, in UpdatePriorityInput) (*models.Token, error) {
	var out models.Token
	if err := c.do(ctx, http.MethodPut, "/tokens/priority", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request and decodes the data field of the {message, data}
// envelope into out. Every failure comes back as *errors.RequestError.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.NewRequestError(method, path, 0, "encode request: "+err.Error())
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return errors.NewRequestError(method, path, 0, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set(logger.RequestIDHeader, reqID)
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.l.Warnf(ctx, "api.httpClient.do: %s %s (request_id=%s): %v", method, path, reqID, err)
		return errors.NewRequestError(method, path, 0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errors.NewRequestError(method, path, resp.StatusCode, "read response: "+err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorMessage(raw, resp.Status)
		c.l.Warnf(ctx, "api.httpClient.do: %s %s (request_id=%s): %d %s", method, path, reqID, resp.StatusCode, msg)
		return errors.NewRequestError(method, path, resp.StatusCode, msg)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.NewRequestError(method, path, resp.StatusCode, "decode envelope: "+err.Error())
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.NewRequestError(method, path, resp.StatusCode, "decode data: "+err.Error())
	}
	return nil
}

// errorMessage prefers the body's error field, then message, then the
// HTTP status line.
func errorMessage(raw []byte, status string) string {
	var body struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if s, ok := body.Error.(string); ok && s != "" {
			return s
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return status
}

func oneOrMany[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '[' {
		var many []T
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, err
		}
		return many, nil
	}

	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}
