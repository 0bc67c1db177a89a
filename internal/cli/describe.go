package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dalemusser/rasterhub/internal/app/system/filestage"
	"github.com/dalemusser/rasterhub/internal/app/system/tiffcheck"
	"github.com/dalemusser/rasterhub/internal/domain/project"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Description is a project written out as YAML. Entities are listed in id
// order; relations use the wire ids ("imagen-0", "grupo-1", "miembro-2").
//
//	projectName: proyecto
//	studentTutor: "no"
//	ciafLevel: 2
//	images:
//	  - file: rasters/a01.tif
//	groups:
//	  - name: g1
//	members:
//	  - username: lider
//	    role: Líder
//	    container: true
//	relations:
//	  - {from: imagen-0, to: grupo-0}
//	  - {from: miembro-0, to: grupo-0}
type Description struct {
	ProjectName  string          `yaml:"projectName"`
	StudentTutor string          `yaml:"studentTutor"`
	CIAFLevel    int             `yaml:"ciafLevel"`
	Images       []ImageEntry    `yaml:"images"`
	Groups       []GroupEntry    `yaml:"groups"`
	Members      []MemberEntry   `yaml:"members"`
	Relations    []RelationEntry `yaml:"relations"`
}

type ImageEntry struct {
	File string `yaml:"file"` // relative to the description file
}

type GroupEntry struct {
	Name string `yaml:"name"`
}

type MemberEntry struct {
	UserName  string `yaml:"username"`
	Role      string `yaml:"role"`
	Container bool   `yaml:"container"`
}

type RelationEntry struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// ErrBadMode is returned for a studentTutor value other than "si" or "no".
var ErrBadMode = errors.New(`studentTutor must be "si" or "no"`)

// Decode parses a description. Unknown keys are rejected.
func Decode(r io.Reader) (*Description, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var d Description
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return &d, nil
		}
		return nil, fmt.Errorf("decode description: %w", err)
	}
	return &d, nil
}

// LoadFile reads the description at path and builds its session. Image
// paths resolve against the file's directory.
func LoadFile(path string, log *zap.Logger) (*project.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s, err := d.Session(filepath.Dir(path), log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Session applies the description to a new session, in the order an editor
// would: mode, counts, entity fields, files, then relations.
func (d *Description) Session(baseDir string, log *zap.Logger) (*project.Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := project.NewSession()
	s.SetProjectName(d.ProjectName)
	s.SetCIAFLevel(d.CIAFLevel)

	if d.StudentTutor != "" {
		m := project.ParseMode(d.StudentTutor)
		if m == project.ModeUnset {
			return nil, fmt.Errorf("%w, got %q", ErrBadMode, d.StudentTutor)
		}
		s.SetMode(m)
	}

	for kind, n := range map[project.Kind]int{
		project.KindImage:  len(d.Images),
		project.KindGroup:  len(d.Groups),
		project.KindMember: len(d.Members),
	} {
		if err := s.SetCount(kind, n); err != nil {
			return nil, err
		}
	}

	for i, g := range d.Groups {
		if err := s.SetGroupName(project.GroupID(i), g.Name); err != nil {
			return nil, fmt.Errorf("groups[%d]: %w", i, err)
		}
	}
	for i, m := range d.Members {
		id := project.MemberID(i)
		if err := s.SetMemberUserName(id, m.UserName); err != nil {
			return nil, fmt.Errorf("members[%d]: %w", i, err)
		}
		if m.Role != "" {
			if err := s.SetMemberRole(id, project.Role(m.Role)); err != nil {
				return nil, fmt.Errorf("members[%d]: %w", i, err)
			}
		}
		if m.Container {
			if err := s.SetContainer(id, true); err != nil {
				return nil, fmt.Errorf("members[%d]: %w", i, err)
			}
		}
	}
	for i, img := range d.Images {
		if img.File == "" {
			continue
		}
		f, err := localFile(baseDir, img.File, log)
		if err != nil {
			return nil, fmt.Errorf("images[%d]: %w", i, err)
		}
		if err := s.BindImageFile(project.ImageID(i), f); err != nil {
			return nil, fmt.Errorf("images[%d]: %w", i, err)
		}
	}
	for i, rel := range d.Relations {
		from, err := project.ParseEntityID(rel.From)
		if err != nil {
			return nil, fmt.Errorf("relations[%d]: %w", i, err)
		}
		to, err := project.ParseEntityID(rel.To)
		if err != nil {
			return nil, fmt.Errorf("relations[%d]: %w", i, err)
		}
		if _, err := s.Connect(from, to); err != nil {
			return nil, fmt.Errorf("relations[%d]: %w", i, err)
		}
	}
	return s, nil
}

func localFile(baseDir, name string, log *zap.Logger) (project.ImageFile, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	if err := project.CheckImageFileName(filepath.Base(path)); err != nil {
		return project.ImageFile{}, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return project.ImageFile{}, err
	}
	info, err := tiffcheck.SniffFile(path)
	if err != nil {
		return project.ImageFile{}, fmt.Errorf("%s: %w", name, err)
	}
	if info.Warning != "" {
		log.Warn("tiff accepted with warning", zap.String("file", path), zap.String("warning", info.Warning))
	}
	return project.ImageFile{
		Name:   filepath.Base(path),
		Size:   st.Size(),
		Source: &filestage.File{Path: path, Size: st.Size()},
	}, nil
}
