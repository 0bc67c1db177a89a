// internal/app/system/submission/client.go
package submission

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

	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"go.uber.org/zap"
)

// Backend paths, relative to the configured base URL.
const (
	UploadPath = "/api/projects/upload-tiffs"
	CreatePath = "/api/projects/create"
	LoginPath  = "/api/login"
)

// maxResponseBytes bounds how much of a backend response is read.
const maxResponseBytes = 8 << 20

// RasterResult is one entry of the create response's "resumen_rasters" list.
type RasterResult struct {
	Image   string   `json:"imagen" bson:"image"`
	Status  string   `json:"status" bson:"status"`
	Seconds *float64 `json:"duracion_segundos,omitempty" bson:"seconds,omitempty"`
	Error   string   `json:"error,omitempty" bson:"error,omitempty"`
}

// StatusOK is the status the backend reports for a processed raster.
const StatusOK = "éxito"

// Succeeded reports whether the raster was processed.
func (r RasterResult) Succeeded() bool { return r.Status == StatusOK }

// CreateResponse is the decoded body of the create call.
type CreateResponse struct {
	Success bool           `json:"success"`
	Errors  []ImageError   `json:"errores,omitempty"`
	Rasters []RasterResult `json:"resumen_rasters,omitempty"`
	Detail  string         `json:"detail,omitempty"`
	Msg     string         `json:"msg,omitempty"`
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
}

type loginResponse struct {
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Client talks to the processing backend. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient returns a client for baseURL. A nil httpClient uses a client
// without its own timeout; callers bound each call with a context.
func NewClient(baseURL string, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("backend url must be absolute http(s): %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{baseURL: strings.TrimRight(u.String(), "/"), http: httpClient, log: log}, nil
}

// UploadTIFFs streams the bundle as multipart/form-data: one "projectName"
// field followed by every file under payload.FilesField.
func (c *Client) UploadTIFFs(ctx context.Context, b payload.Bundle) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeBundle(mw, b))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return &PhaseError{Phase: PhaseUpload, Kind: ErrTransport, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		c.log.Warn("tiff upload failed", zap.Error(err), zap.Int("files", len(b.Files)))
		return &PhaseError{Phase: PhaseUpload, Kind: ErrTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &PhaseError{Phase: PhaseUpload, Kind: ErrTransport, StatusCode: resp.StatusCode, Err: err}
	}

	var out uploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return &PhaseError{Phase: PhaseUpload, Kind: ErrUnexpectedBody, StatusCode: resp.StatusCode, RawBody: string(raw), Err: err}
	}
	if resp.StatusCode/100 != 2 || !out.Success {
		return &PhaseError{Phase: PhaseUpload, Kind: ErrRejected, StatusCode: resp.StatusCode, Detail: out.Detail}
	}
	return nil
}

func writeBundle(mw *multipart.Writer, b payload.Bundle) error {
	if err := mw.WriteField("projectName", b.ProjectName); err != nil {
		return err
	}
	for _, f := range b.Files {
		if err := copyFile(mw, f); err != nil {
			return err
		}
	}
	return mw.Close()
}

func copyFile(mw *multipart.Writer, f payload.File) error {
	src, err := f.Source.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer src.Close()

	field := f.Field
	if field == "" {
		field = payload.FilesField
	}
	part, err := mw.CreateFormFile(field, f.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	return nil
}

// CreateProject posts the project description. A response that decodes but
// reports failure comes back as a *PhaseError of kind ErrRejected carrying
// the backend's per-image errors. A body that is not JSON is kept verbatim.
func (c *Client) CreateProject(ctx context.Context, r payload.CreateRequest) (*CreateResponse, error) {
	status, raw, err := c.postJSON(ctx, CreatePath, r)
	if err != nil {
		c.log.Warn("project create failed", zap.Error(err), zap.String("project", r.ProjectName))
		return nil, &PhaseError{Phase: PhaseCreate, Kind: ErrTransport, StatusCode: status, Err: err}
	}

	var out CreateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &PhaseError{Phase: PhaseCreate, Kind: ErrUnexpectedBody, StatusCode: status, RawBody: string(raw), Err: err}
	}
	if status/100 != 2 || !out.Success {
		detail := out.Detail
		if detail == "" {
			detail = out.Msg
		}
		return nil, &PhaseError{
			Phase:       PhaseCreate,
			Kind:        ErrRejected,
			StatusCode:  status,
			Detail:      detail,
			ImageErrors: out.Errors,
		}
	}
	return &out, nil
}

// Login asks the backend whether email may configure projects. It returns
// the backend's confirmation message.
func (c *Client) Login(ctx context.Context, email string) (string, error) {
	status, raw, err := c.postJSON(ctx, LoginPath, map[string]string{"username": email})
	if err != nil {
		return "", &PhaseError{Phase: PhaseLogin, Kind: ErrTransport, StatusCode: status, Err: err}
	}
	var out loginResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &PhaseError{Phase: PhaseLogin, Kind: ErrUnexpectedBody, StatusCode: status, RawBody: string(raw), Err: err}
	}
	if status/100 != 2 {
		return "", &PhaseError{Phase: PhaseLogin, Kind: ErrRejected, StatusCode: status, Detail: out.Detail}
	}
	return out.Message, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (int, []byte, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}
