package cli

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dalemusser/rasterhub/internal/app/system/projectcheck"
	"github.com/dalemusser/rasterhub/internal/domain/project"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

const minimalYAML = `
projectName: proyecto
studentTutor: "no"
ciafLevel: 2
images:
  - file: a01.tif
groups:
  - name: g1
members:
  - username: lider
    role: Líder
    container: true
relations:
  - {from: imagen-0, to: grupo-0}
  - {from: miembro-0, to: grupo-0}
`

// writeProject lays out a description and a valid TIFF in a temp dir.
func writeProject(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)), nil))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a01.tif"), buf.Bytes(), 0o644))
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadFile_Minimal(t *testing.T) {
	s, err := LoadFile(writeProject(t, minimalYAML), nil)
	require.NoError(t, err)

	snap := s.Snapshot()
	if vs := projectcheck.Check(snap); len(vs) != 0 {
		t.Fatalf("violations: %s", projectcheck.Messages(vs))
	}
	if snap.Mode != project.ModeStandard {
		t.Errorf("mode: got %v", snap.Mode)
	}
	img := snap.Images[0]
	if img.File == nil || img.File.Name != "a01.tif" || img.File.Size == 0 {
		t.Fatalf("image file: got %+v", img.File)
	}
	rc, err := img.File.Source.Open()
	require.NoError(t, err)
	rc.Close()
	if len(snap.Associations) != 2 {
		t.Errorf("associations: got %d, want 2", len(snap.Associations))
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
		msg  string
	}{
		{"bad mode", "studentTutor: tal vez\n", ErrBadMode, ""},
		{"unknown key", "nombre: x\n", nil, "field nombre not found"},
		{"illegal role", "studentTutor: si\nmembers:\n  - {username: a, role: Líder}\n", project.ErrIllegalRole, "members[0]"},
		{"bad relation id", "images: [{}]\ngroups: [{name: g}]\nrelations:\n  - {from: img0, to: grupo-0}\n", project.ErrMalformedID, "relations[0]"},
		{"illegal pair", "images: [{}]\ngroups: [{name: g}]\nrelations:\n  - {from: grupo-0, to: imagen-0}\n", project.ErrIllegalEndpointPair, "relations[0]"},
		{"bad file name", "images:\n  - file: A01.tif\n", project.ErrInvalidImageFile, "images[0]"},
		{"missing file", "images:\n  - file: b01.tif\n", os.ErrNotExist, "images[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeProject(t, tt.yaml), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error: got %v, want %v", err, tt.want)
			}
			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestLoadFile_NotTIFF(t *testing.T) {
	path := writeProject(t, "images:\n  - file: b01.tif\n")
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "b01.tif"), []byte("plain text"), 0o644))

	_, err := LoadFile(path, nil)
	if err == nil || !strings.Contains(err.Error(), "not a TIFF") {
		t.Errorf("error: got %v", err)
	}
}

func TestDecode_Empty(t *testing.T) {
	d, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	s, err := d.Session(".", nil)
	require.NoError(t, err)
	if n := len(projectcheck.Check(s.Snapshot())); n == 0 {
		t.Error("an empty project must have violations")
	}
}
