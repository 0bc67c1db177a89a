package projects_test

import (
	"bytes"
	"encoding/json"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/features/projects"
	"github.com/dalemusser/rasterhub/internal/app/store/drafts"
	"github.com/dalemusser/rasterhub/internal/app/system/filestage"
	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"github.com/dalemusser/rasterhub/internal/app/system/submission"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/image/tiff"
)

var fixedNow = time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)

// backend is a fake processing server.
type backend struct {
	mu       sync.Mutex
	uploaded []string
	created  *payload.CreateRequest
	release  chan struct{} // when set, create waits on it
	failBody string        // when set, create answers 500 with this body
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case submission.UploadPath:
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		for _, fh := range r.MultipartForm.File[payload.FilesField] {
			b.uploaded = append(b.uploaded, fh.Filename)
		}
		b.mu.Unlock()
		w.Write([]byte(`{"success":true}`))
	case submission.CreatePath:
		if b.release != nil {
			<-b.release
		}
		if b.failBody != "" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, b.failBody)
			return
		}
		var req payload.CreateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.created = &req
		b.mu.Unlock()
		w.Write([]byte(`{"success":true,"resumen_rasters":[{"imagen":"a01","status":"éxito","duracion_segundos":3.5}]}`))
	default:
		http.NotFound(w, r)
	}
}

type env struct {
	t       *testing.T
	router  http.Handler
	backend *backend
	store   *drafts.Store
}

func passthrough(next http.Handler) http.Handler { return next }

func newEnv(t *testing.T) *env {
	t.Helper()
	fake := &backend{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := submission.NewClient(srv.URL, srv.Client(), nil)
	require.NoError(t, err)

	area, err := filestage.New(t.TempDir(), 1<<20, zap.NewNop())
	require.NoError(t, err)

	store := drafts.New(drafts.Config{
		Submitter: func(id string) *submission.Orchestrator {
			return submission.New(client, nil, submission.WithLabel(id))
		},
		OnExpire: func(id string) { _ = area.RemoveDraft(id) },
	}, zap.NewNop())

	h := projects.NewHandler(store, area, payload.Options{}, zap.NewNop())
	h.Clock = func() time.Time { return fixedNow }

	r := chi.NewRouter()
	r.Mount("/api/drafts", projects.Routes(h, passthrough))
	r.Mount("/api/submissions", projects.HistoryRoutes(projects.NewHistoryHandler(nil, h), passthrough))
	return &env{t: t, router: r, backend: fake, store: store}
}

func (e *env) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) upload(path, name string, data []byte) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(projects.FileField, name)
	require.NoError(e.t, err)
	_, _ = part.Write(data)
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) expect(rec *httptest.ResponseRecorder, status int) map[string]any {
	e.t.Helper()
	if rec.Code != status {
		e.t.Fatalf("status: got %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return out
}

func tiffBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)), nil))
	return buf.Bytes()
}

// minimalDraft builds a valid one-image, one-group, one-leader project.
func (e *env) minimalDraft() string {
	e.t.Helper()
	id := e.expect(e.do("POST", "/api/drafts/", nil), http.StatusCreated)["id"].(string)
	base := "/api/drafts/" + id

	e.expect(e.do("PUT", base+"/project", map[string]any{"projectName": "proyecto", "ciafLevel": 2}), http.StatusOK)
	e.expect(e.do("PUT", base+"/mode", map[string]any{"studentTutor": "no"}), http.StatusOK)
	for _, kind := range []string{"images", "groups", "members"} {
		e.expect(e.do("PUT", base+"/counts/"+kind, map[string]any{"count": 1}), http.StatusOK)
	}
	e.expect(e.do("PUT", base+"/groups/0", map[string]any{"name": "g1"}), http.StatusOK)
	e.expect(e.do("PUT", base+"/members/0", map[string]any{"username": "lider", "role": "Líder", "container": true}), http.StatusOK)
	e.expect(e.upload(base+"/images/0/file", "a01.tif", tiffBytes(e.t)), http.StatusOK)
	e.expect(e.do("POST", base+"/relations", map[string]any{"from": "imagen-0", "to": "grupo-0"}), http.StatusCreated)
	e.expect(e.do("POST", base+"/relations", map[string]any{"from": "miembro-0", "to": "grupo-0"}), http.StatusCreated)
	return id
}

func TestDraftLifecycle(t *testing.T) {
	e := newEnv(t)
	id := e.minimalDraft()
	base := "/api/drafts/" + id

	got := e.expect(e.do("GET", base, nil), http.StatusOK)
	if got["projectName"] != "proyecto" || got["studentTutor"] != "no" {
		t.Errorf("snapshot scalars: got %v / %v", got["projectName"], got["studentTutor"])
	}
	if n := len(got["associations"].([]any)); n != 2 {
		t.Errorf("associations: got %d, want 2", n)
	}

	v := e.expect(e.do("POST", base+"/validate", nil), http.StatusOK)
	if v["valid"] != true {
		t.Errorf("expected valid model, got %v", v)
	}

	p := e.expect(e.do("POST", base+"/payload", nil), http.StatusOK)
	req := p["payload"].(map[string]any)
	if req["projectName"] != "proyecto20240307" {
		t.Errorf("projectName: got %v", req["projectName"])
	}
	if req["grupoContenedor"] != "lider" {
		t.Errorf("grupoContenedor: got %v", req["grupoContenedor"])
	}

	e.expect(e.do("DELETE", base, nil), http.StatusNoContent)
	e.expect(e.do("GET", base, nil), http.StatusNotFound)
}

func TestSubmit(t *testing.T) {
	e := newEnv(t)
	id := e.minimalDraft()
	base := "/api/drafts/" + id

	out := e.expect(e.do("POST", base+"/submit", nil), http.StatusOK)
	if out["state"] != "done" {
		t.Errorf("state: got %v", out["state"])
	}
	if !strings.Contains(out["report"].(string), "a01: ✅ (3.5 seg)") {
		t.Errorf("report: got %q", out["report"])
	}

	e.backend.mu.Lock()
	uploaded, created := e.backend.uploaded, e.backend.created
	e.backend.mu.Unlock()
	if len(uploaded) != 1 || uploaded[0] != "a01.tif" {
		t.Errorf("uploaded: got %v", uploaded)
	}
	if created == nil || created.ProjectName != "proyecto20240307" {
		t.Errorf("created: got %+v", created)
	}

	st := e.expect(e.do("GET", base+"/submit", nil), http.StatusOK)
	if st["state"] != "done" {
		t.Errorf("status: got %v", st["state"])
	}
}

func TestSubmit_InFlightRejected(t *testing.T) {
	e := newEnv(t)
	e.backend.release = make(chan struct{})
	id := e.minimalDraft()
	base := "/api/drafts/" + id

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- e.do("POST", base+"/submit", nil) }()

	require.Eventually(t, func() bool {
		d, err := e.store.Get(id)
		return err == nil && d.Submitter.Status().State.InFlight()
	}, 2*time.Second, 5*time.Millisecond)

	body := e.expect(e.do("POST", base+"/submit", nil), http.StatusConflict)
	if body["code"] != "submission_in_flight" {
		t.Errorf("code: got %v", body["code"])
	}
	e.expect(e.do("DELETE", base+"/images/0/file", nil), http.StatusConflict)

	close(e.backend.release)
	if rec := <-first; rec.Code != http.StatusOK {
		t.Errorf("first submit: got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestBindFile_RefusedWhenSubmitStartsDuringUpload(t *testing.T) {
	e := newEnv(t)
	e.backend.release = make(chan struct{})
	id := e.minimalDraft()
	base := "/api/drafts/" + id

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	req := httptest.NewRequest(http.MethodPut, base+"/images/0/file", pr)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	bind := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		bind <- rec
	}()

	// The handler is streaming the body once it has read the part header.
	part, err := mw.CreateFormFile(projects.FileField, "b02.tif")
	require.NoError(t, err)
	_, err = part.Write(tiffBytes(t))
	require.NoError(t, err)

	submit := make(chan *httptest.ResponseRecorder, 1)
	go func() { submit <- e.do("POST", base+"/submit", nil) }()
	require.Eventually(t, func() bool {
		d, err := e.store.Get(id)
		return err == nil && d.Submitter.Status().State.InFlight()
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, mw.Close())
	require.NoError(t, pw.Close())
	body := e.expect(<-bind, http.StatusConflict)
	if body["code"] != "submission_in_flight" {
		t.Errorf("code: got %v", body["code"])
	}

	close(e.backend.release)
	if rec := <-submit; rec.Code != http.StatusOK {
		t.Fatalf("submit: got %d (%s)", rec.Code, rec.Body.String())
	}
	e.backend.mu.Lock()
	uploaded := append([]string(nil), e.backend.uploaded...)
	e.backend.mu.Unlock()
	require.Equal(t, []string{"a01.tif"}, uploaded)

	got := e.expect(e.do("GET", base, nil), http.StatusOK)
	img := got["images"].([]any)[0].(map[string]any)
	if name := img["file"].(map[string]any)["name"]; name != "a01.tif" {
		t.Errorf("bound file: got %v, want a01.tif", name)
	}
}

func TestSubmit_NonJSONBodyReturnedVerbatim(t *testing.T) {
	e := newEnv(t)
	e.backend.failBody = "Traceback:\n    KeyError: <grupo-3> not found"
	id := e.minimalDraft()

	body := e.expect(e.do("POST", "/api/drafts/"+id+"/submit", nil), http.StatusBadGateway)
	if body["raw"] != e.backend.failBody {
		t.Errorf("raw: got %q, want %q", body["raw"], e.backend.failBody)
	}
	if report, _ := body["report"].(string); !strings.HasSuffix(report, e.backend.failBody) {
		t.Errorf("report does not carry the body verbatim: %q", report)
	}
	if body["phase"] != "create" {
		t.Errorf("phase: got %v", body["phase"])
	}
}

func TestPayload_InvalidModelReturnsViolations(t *testing.T) {
	e := newEnv(t)
	id := e.expect(e.do("POST", "/api/drafts/", nil), http.StatusCreated)["id"].(string)

	body := e.expect(e.do("POST", "/api/drafts/"+id+"/payload", nil), http.StatusUnprocessableEntity)
	if body["code"] != "invalid_model" {
		t.Errorf("code: got %v", body["code"])
	}
	if vs, _ := body["violations"].([]any); len(vs) == 0 {
		t.Error("expected violations in body")
	}
	e.expect(e.do("POST", "/api/drafts/"+id+"/submit", nil), http.StatusUnprocessableEntity)
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)
	id := e.minimalDraft()
	base := "/api/drafts/" + id

	cases := []struct {
		name   string
		rec    *httptest.ResponseRecorder
		status int
		code   string
	}{
		{"unknown draft", e.do("GET", "/api/drafts/does-not-exist", nil), http.StatusNotFound, "draft_not_found"},
		{"duplicate", e.do("POST", base+"/relations", map[string]any{"from": "imagen-0", "to": "grupo-0"}), http.StatusConflict, "duplicate_association"},
		{"illegal pair", e.do("POST", base+"/relations", map[string]any{"from": "grupo-0", "to": "imagen-0"}), http.StatusUnprocessableEntity, "illegal_pair"},
		{"malformed id", e.do("POST", base+"/relations", map[string]any{"from": "img0", "to": "grupo-0"}), http.StatusUnprocessableEntity, "malformed_id"},
		{"unknown entity", e.do("POST", base+"/relations", map[string]any{"from": "miembro-7", "to": "grupo-0"}), http.StatusNotFound, "unknown_entity"},
		{"unknown association", e.do("DELETE", base+"/relations?from=miembro-0&to=grupo-1", nil), http.StatusNotFound, "unknown_association"},
		{"bad mode", e.do("PUT", base+"/mode", map[string]any{"studentTutor": "tal vez"}), http.StatusBadRequest, "bad_request"},
		{"negative count", e.do("PUT", base+"/counts/groups", map[string]any{"count": -1}), http.StatusUnprocessableEntity, "negative_count"},
		{"unknown kind", e.do("PUT", base+"/counts/widgets", map[string]any{"count": 1}), http.StatusBadRequest, "bad_request"},
		{"illegal role", e.do("PUT", base+"/members/0", map[string]any{"role": "Tutor"}), http.StatusUnprocessableEntity, "illegal_role"},
		{"container role", e.do("PUT", base+"/members/0", map[string]any{"role": "Contribuyente", "container": true}), http.StatusUnprocessableEntity, "container_role"},
		{"bad file name", e.upload(base+"/images/0/file", "A 01.tif", tiffBytes(t)), http.StatusUnprocessableEntity, "invalid_image_file"},
		{"not a tiff", e.upload(base+"/images/0/file", "b01.tif", []byte("hello")), http.StatusUnprocessableEntity, "not_tiff"},
		{"unknown field", e.do("PUT", base+"/groups/0", map[string]any{"nombre": "x"}), http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.rec.Code != tc.status {
				t.Fatalf("status: got %d, want %d (%s)", tc.rec.Code, tc.status, tc.rec.Body.String())
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(tc.rec.Body.Bytes(), &body))
			if body["code"] != tc.code {
				t.Errorf("code: got %v, want %q", body["code"], tc.code)
			}
		})
	}

	// Rejected updates changed nothing.
	got := e.expect(e.do("GET", base, nil), http.StatusOK)
	m := got["members"].([]any)[0].(map[string]any)
	if m["role"] != "Líder" || m["container"] != true {
		t.Errorf("member changed by rejected update: %v", m)
	}
	img := got["images"].([]any)[0].(map[string]any)
	if f := img["file"].(map[string]any); f["name"] != "a01.tif" {
		t.Errorf("binding changed by rejected upload: %v", f)
	}
}

func TestCountChangeClearsRelations(t *testing.T) {
	e := newEnv(t)
	id := e.minimalDraft()
	base := "/api/drafts/" + id

	e.expect(e.do("PUT", base+"/counts/groups", map[string]any{"count": 2}), http.StatusOK)
	got := e.expect(e.do("GET", base+"/relations", nil), http.StatusOK)
	if n := len(got["associations"].([]any)); n != 0 {
		t.Errorf("associations after count change: got %d, want 0", n)
	}
}

func TestRelationsByClass(t *testing.T) {
	e := newEnv(t)
	id := e.minimalDraft()
	base := "/api/drafts/" + id

	got := e.expect(e.do("GET", base+"/relations?class=member", nil), http.StatusOK)
	as := got["associations"].([]any)
	if len(as) != 1 || as[0].(map[string]any)["from"] != "miembro-0" {
		t.Errorf("member relations: got %v", as)
	}
	e.expect(e.do("GET", base+"/relations?class=nope", nil), http.StatusBadRequest)

	e.expect(e.do("DELETE", base+"/relations?from=imagen-0&to=grupo-0", nil), http.StatusOK)
	got = e.expect(e.do("GET", base+"/relations?class=raster", nil), http.StatusOK)
	if n := len(got["associations"].([]any)); n != 0 {
		t.Errorf("raster relations after delete: got %d", n)
	}
}

func TestHistory_DisabledWithoutStore(t *testing.T) {
	e := newEnv(t)
	got := e.expect(e.do("GET", "/api/submissions/", nil), http.StatusOK)
	if got["enabled"] != false {
		t.Errorf("enabled: got %v", got["enabled"])
	}
}
