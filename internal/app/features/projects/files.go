// internal/app/features/projects/files.go
package projects

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dalemusser/rasterhub/internal/app/system/filestage"
	"github.com/dalemusser/rasterhub/internal/app/system/tiffcheck"
	"github.com/dalemusser/rasterhub/internal/domain/project"
	"go.uber.org/zap"
)

// FileField is the multipart field carrying an image upload.
const FileField = "file"

// multipartOverhead is allowed on top of the file limit for headers and boundaries.
const multipartOverhead = 1 << 20

type fileView struct {
	draftView
	TIFF tiffcheck.Info `json:"tiff"`
}

// ServeBindFile handles PUT /drafts/{id}/images/{index}/file. The upload is
// streamed to the staging area, sniffed, and only then bound. A rejected
// file leaves the previous binding untouched.
func (h *Handler) ServeBindFile(w http.ResponseWriter, r *http.Request) {
	idx, err := index(r, "index")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	if err := idle(d); err != nil {
		h.fail(w, r, err)
		return
	}
	id := project.ImageID(idx)
	if err := d.Edit(func(s *project.Session) error {
		if !s.Registry().Has(id) {
			return &project.EntityError{Kind: project.ErrUnknownEntity, ID: id}
		}
		return nil
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	part, err := nextFilePart(w, r, h.Staging)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer part.Close()

	name := part.FileName()
	if err := project.CheckImageFileName(name); err != nil {
		h.fail(w, r, err)
		return
	}

	staged, err := h.Staging.Save(d.ID, part)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			err = filestage.ErrTooLarge
		}
		h.fail(w, r, err)
		return
	}

	info, err := tiffcheck.SniffFile(staged.Path)
	if err != nil {
		h.Staging.Discard(staged)
		h.fail(w, r, err)
		return
	}
	if info.Warning != "" {
		h.Log.Warn("tiff accepted with warning",
			zap.String("draft_id", d.ID),
			zap.String("entity", id.String()),
			zap.String("file", name),
			zap.String("warning", info.Warning))
	}

	// A submission may have started while the body streamed in; it reads the
	// file being replaced, so the in-flight check repeats under the lock.
	prev, err := d.Stage(idx, staged, func(s *project.Session) error {
		if err := idle(d); err != nil {
			return err
		}
		return s.BindImageFile(id, project.ImageFile{Name: name, Size: staged.Size, Source: staged})
	})
	if err != nil {
		h.Staging.Discard(staged)
		h.fail(w, r, err)
		return
	}
	h.Staging.Discard(prev)

	h.Log.Info("image file bound",
		zap.String("draft_id", d.ID),
		zap.String("entity", id.String()),
		zap.String("file", name),
		zap.Int64("size", staged.Size))
	writeJSON(w, http.StatusOK, fileView{draftView: viewOf(d), TIFF: info})
}

type namedPart interface {
	io.ReadCloser
	FileName() string
}

// nextFilePart returns the first multipart part named FileField.
func nextFilePart(w http.ResponseWriter, r *http.Request, area *filestage.Area) (namedPart, error) {
	if limit := area.MaxBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &badRequest{msg: "se esperaba multipart/form-data", err: err}
	}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return nil, &badRequest{msg: fmt.Sprintf("falta el campo %q", FileField)}
		}
		if err != nil {
			return nil, &badRequest{msg: "multipart inválido", err: err}
		}
		if p.FormName() == FileField && p.FileName() != "" {
			return p, nil
		}
		_ = p.Close()
	}
}

// ServeUnbindFile handles DELETE /drafts/{id}/images/{index}/file.
func (h *Handler) ServeUnbindFile(w http.ResponseWriter, r *http.Request) {
	idx, err := index(r, "index")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	if err := idle(d); err != nil {
		h.fail(w, r, err)
		return
	}
	prev, err := d.Stage(idx, nil, func(s *project.Session) error {
		if err := idle(d); err != nil {
			return err
		}
		return s.UnbindImageFile(project.ImageID(idx))
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Staging.Discard(prev)
	writeJSON(w, http.StatusOK, viewOf(d))
}
