// internal/app/system/submission/outcome.go
package submission

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Outcome is a completed submission. The backend accepted the project; some
// rasters may still have failed downstream, which is reported per image and
// never treated as a client-side error.
type Outcome struct {
	ProjectName string         `json:"projectName"`
	Rasters     []RasterResult `json:"rasters"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  time.Time      `json:"finishedAt"`
}

// Failed returns the rasters the backend could not process.
func (o *Outcome) Failed() []RasterResult {
	var out []RasterResult
	for _, r := range o.Rasters {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// Partial reports whether at least one raster failed.
func (o *Outcome) Partial() bool { return len(o.Failed()) > 0 }

// Report renders the user-facing summary, one line per image.
func (o *Outcome) Report() string {
	var b strings.Builder
	if o.Partial() {
		b.WriteString("⚠️ Proyecto creado con errores en algunas imágenes.\n")
	} else {
		b.WriteString("✅ Proyecto creado exitosamente.\n")
	}
	if len(o.Rasters) == 0 {
		return strings.TrimRight(b.String(), "\n")
	}
	b.WriteString("\nResultado por imagen:\n")
	for _, r := range o.Rasters {
		if r.Succeeded() {
			secs := "?"
			if r.Seconds != nil {
				secs = strconv.FormatFloat(*r.Seconds, 'f', -1, 64)
			}
			fmt.Fprintf(&b, "• %s: ✅ (%s seg)\n", r.Image, secs)
			continue
		}
		msg := r.Error
		if msg == "" {
			msg = "Error desconocido"
		}
		fmt.Fprintf(&b, "• %s: ❌ %s\n", r.Image, msg)
	}
	return strings.TrimRight(b.String(), "\n")
}
