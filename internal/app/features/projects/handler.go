// internal/app/features/projects/handler.go
package projects

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/store/drafts"
	"github.com/dalemusser/rasterhub/internal/app/system/filestage"
	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"github.com/dalemusser/rasterhub/internal/app/system/projectcheck"
	"github.com/dalemusser/rasterhub/internal/app/system/submission"
	"github.com/dalemusser/rasterhub/internal/app/system/tiffcheck"
	"github.com/dalemusser/rasterhub/internal/domain/project"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxJSONBody bounds the JSON bodies of editing calls.
const maxJSONBody = 64 << 10

// Handler serves the editor API over drafts.
type Handler struct {
	Drafts  *drafts.Store
	Staging *filestage.Area
	Build   payload.Options // Now is ignored; Clock supplies it per request
	Clock   func() time.Time
	Log     *zap.Logger
}

// NewHandler wires the editor API.
func NewHandler(store *drafts.Store, staging *filestage.Area, build payload.Options, logger *zap.Logger) *Handler {
	return &Handler{
		Drafts:  store,
		Staging: staging,
		Build:   build,
		Clock:   time.Now,
		Log:     logger,
	}
}

func (h *Handler) buildOptions() payload.Options {
	o := h.Build
	o.Now = h.Clock()
	return o
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request helpers                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// draft resolves {id}. On failure it has already written the response.
func (h *Handler) draft(w http.ResponseWriter, r *http.Request) (*drafts.Draft, bool) {
	d, err := h.Drafts.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return d, true
}

// index parses a zero-based path parameter.
func index(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &badRequest{msg: "índice inválido: " + raw}
	}
	return n, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &badRequest{msg: "cuerpo JSON inválido", err: err}
	}
	return nil
}

type badRequest struct {
	msg string
	err error
}

func (e *badRequest) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *badRequest) Unwrap() error { return e.err }

/*─────────────────────────────────────────────────────────────────────────────*
| Responses                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error      string                   `json:"error"`
	Code       string                   `json:"code,omitempty"`
	Detail     string                   `json:"detail,omitempty"`
	Violations []projectcheck.Violation `json:"violations,omitempty"`
	Phase      submission.Phase         `json:"phase,omitempty"`
	Report     string                   `json:"report,omitempty"`
	Raw        string                   `json:"raw,omitempty"`
	Preview    string                   `json:"preview,omitempty"`
}

// errorStatus maps an error to its HTTP status, stable code and user message.
func errorStatus(err error) (int, string, string) {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, "bad_request", br.msg

	case errors.Is(err, drafts.ErrNotFound):
		return http.StatusNotFound, "draft_not_found", "El borrador no existe o expiró"
	case errors.Is(err, project.ErrUnknownEntity):
		return http.StatusNotFound, "unknown_entity", "El elemento no existe"
	case errors.Is(err, project.ErrUnknownAssociation):
		return http.StatusNotFound, "unknown_association", "La relación no existe"

	case errors.Is(err, project.ErrDuplicateAssociation):
		return http.StatusConflict, "duplicate_association", "⚠️ Estos elementos ya están conectados"
	case errors.Is(err, project.ErrGroupAlreadyHasImage):
		return http.StatusConflict, "group_has_image", "⚠️ El grupo ya tiene un ráster asociado"
	case errors.Is(err, submission.ErrSubmissionInFlight):
		return http.StatusConflict, "submission_in_flight", "Ya hay un envío en curso para este proyecto"

	case errors.Is(err, filestage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "file_too_large", "El archivo supera el tamaño máximo permitido"

	case errors.Is(err, project.ErrIllegalEndpointPair):
		return http.StatusUnprocessableEntity, "illegal_pair", "Esa conexión no está permitida"
	case errors.Is(err, project.ErrIllegalRole):
		return http.StatusUnprocessableEntity, "illegal_role", "Rol no permitido en el modo actual"
	case errors.Is(err, project.ErrContainerRole):
		return http.StatusUnprocessableEntity, "container_role", "Solo un Tutor o Líder puede ser contenedor del esquema"
	case errors.Is(err, project.ErrInvalidImageFile):
		return http.StatusUnprocessableEntity, "invalid_image_file", "⚠️ Archivo de imagen inválido"
	case errors.Is(err, tiffcheck.ErrNotTIFF), errors.Is(err, tiffcheck.ErrTruncated):
		return http.StatusUnprocessableEntity, "not_tiff", "⚠️ El archivo no es un TIFF válido"
	case errors.Is(err, project.ErrNegativeCount):
		return http.StatusUnprocessableEntity, "negative_count", "La cantidad no puede ser negativa"
	case errors.Is(err, project.ErrMalformedID), errors.Is(err, project.ErrWrongKind):
		return http.StatusUnprocessableEntity, "malformed_id", "Identificador inválido"
	case errors.Is(err, payload.ErrInvalidModel):
		return http.StatusUnprocessableEntity, "invalid_model", "⚠️ Errores detectados"
	case errors.Is(err, payload.ErrMissingSource), errors.Is(err, payload.ErrNoFilesBound):
		return http.StatusUnprocessableEntity, "missing_file", "Faltan archivos por cargar"

	case errors.Is(err, submission.ErrTransport),
		errors.Is(err, submission.ErrRejected),
		errors.Is(err, submission.ErrUnexpectedBody):
		return http.StatusBadGateway, "backend_failed", "El servidor de procesamiento rechazó la solicitud"
	}
	return http.StatusInternalServerError, "internal", "Error interno"
}

// fail writes err as JSON, attaching violations or phase reports when present.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := errorStatus(err)
	resp := errorResponse{Error: msg, Code: code}

	var ee *project.EntityError
	if errors.As(err, &ee) && ee.Detail != "" {
		resp.Detail = ee.Detail
	}
	var ime *payload.InvalidModelError
	if errors.As(err, &ime) {
		resp.Violations = ime.Violations
		resp.Detail = projectcheck.Messages(ime.Violations)
	}
	var pe *submission.PhaseError
	if errors.As(err, &pe) {
		resp.Phase = pe.Phase
		resp.Report = pe.Report()
		resp.Raw = pe.RawBody
		resp.Preview = pe.Preview()
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("draft_id", chi.URLParam(r, "id")),
		zap.Int("status", status),
	}
	if status >= http.StatusInternalServerError {
		h.Log.Error("projects api", fields...)
	} else {
		h.Log.Debug("projects api", fields...)
	}
	writeJSON(w, status, resp)
}
