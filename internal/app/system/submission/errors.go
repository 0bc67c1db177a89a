// internal/app/system/submission/errors.go
package submission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/rasterhub/internal/app/system/htmlsanitize"
)

var (
	// ErrSubmissionInFlight is returned when Submit is called while an
	// earlier attempt is still uploading or creating.
	ErrSubmissionInFlight = errors.New("submission already in progress")

	ErrTransport      = errors.New("backend unreachable")
	ErrRejected       = errors.New("backend rejected the request")
	ErrUnexpectedBody = errors.New("backend returned a non-JSON body")
)

// Phase names one network step of a submission.
type Phase string

const (
	PhaseUpload Phase = "upload"
	PhaseCreate Phase = "create"
	PhaseLogin  Phase = "login"
)

// ImageError is one entry of the create response's "errores" list.
type ImageError struct {
	Image string `json:"imagen"`
	Error string `json:"error"`
}

// PhaseError reports a failed network phase. It unwraps to both its Kind
// (ErrTransport, ErrRejected, ErrUnexpectedBody) and the underlying cause.
type PhaseError struct {
	Phase       Phase
	Kind        error
	StatusCode  int
	Detail      string
	RawBody     string
	ImageErrors []ImageError
	Err         error
}

func (e *PhaseError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Phase, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *PhaseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// maxPreview bounds the plain-text preview of a non-JSON body.
const maxPreview = 2000

// Preview renders a non-JSON body as a short plain-text excerpt, for places
// that cannot show markup. Report always carries the body verbatim.
func (e *PhaseError) Preview() string {
	if e == nil || e.RawBody == "" {
		return ""
	}
	return htmlsanitize.Excerpt(e.RawBody, maxPreview)
}

// Report renders the user-facing message for the failed phase. A non-JSON
// body is included exactly as the backend sent it.
func (e *PhaseError) Report() string {
	switch e.Phase {
	case PhaseUpload:
		if errors.Is(e.Kind, ErrTransport) {
			return "Error de conexión al cargar TIFFs"
		}
		if errors.Is(e.Kind, ErrUnexpectedBody) {
			return "❌ Error inesperado del servidor al cargar TIFFs:\n" + e.RawBody
		}
		detail := e.Detail
		if detail == "" {
			detail = "Desconocido"
		}
		return "❌ Error al cargar archivos TIFF: " + detail

	case PhaseCreate:
		if errors.Is(e.Kind, ErrTransport) {
			return "❌ Error de red al crear el proyecto. Verifica tu conexión."
		}
		if errors.Is(e.Kind, ErrUnexpectedBody) {
			return "❌ Error inesperado del servidor:\n" + e.RawBody
		}
		if len(e.ImageErrors) > 0 {
			var b strings.Builder
			b.WriteString("❌ El proyecto no se creó por errores en las imágenes:\n\n")
			for _, ie := range e.ImageErrors {
				desc := ie.Error
				if desc == "" {
					desc = "Error desconocido"
				}
				fmt.Fprintf(&b, "• %s: %s\n", ie.Image, desc)
			}
			return strings.TrimRight(b.String(), "\n")
		}
		msg := "❌ Error en la creación del proyecto."
		if e.Detail != "" {
			return msg + "\n\n" + e.Detail
		}
		return msg + "\n\nNo se recibió un mensaje claro del servidor. Revisa la consola o contacta al administrador."

	case PhaseLogin:
		if errors.Is(e.Kind, ErrTransport) {
			return "Error de conexión con el servidor"
		}
		if e.Detail != "" {
			return e.Detail
		}
		return "Ingresar un usuario con los permisos adecuados"
	}
	return e.Error()
}
