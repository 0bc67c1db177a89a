// internal/app/system/payload/payload.go
package payload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/system/projectcheck"
	"github.com/dalemusser/rasterhub/internal/domain/project"
)

// DefaultEmailDomain is appended to member user names.
const DefaultEmailDomain = "udistrital.edu.co"

// FilesField is the multipart field name every bound image is sent under.
const FilesField = "files"

var (
	ErrInvalidModel  = errors.New("project model has violations")
	ErrNoFilesBound  = errors.New("no image files bound")
	ErrUnknownStamp  = errors.New("unknown project name stamp style")
	ErrNoContainer   = errors.New("no container member")
	ErrMissingSource = errors.New("bound file has no source")
)

// InvalidModelError carries the violations that blocked a build.
type InvalidModelError struct {
	Violations []projectcheck.Violation
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("%s (%d)", ErrInvalidModel.Error(), len(e.Violations))
}

func (e *InvalidModelError) Unwrap() error { return ErrInvalidModel }

// Stamp selects how the submission-time disambiguator is appended to the project name.
type Stamp string

const (
	StampDate     Stamp = "date"     // {name}{YYYYMMDD}
	StampDateTime Stamp = "datetime" // {name}_{YYYYMMDDhhmmss}
)

// ParseStamp accepts "date", "datetime" and the empty string (date).
func ParseStamp(s string) (Stamp, error) {
	switch Stamp(strings.ToLower(strings.TrimSpace(s))) {
	case "", StampDate:
		return StampDate, nil
	case StampDateTime:
		return StampDateTime, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStamp, s)
}

// FinalName composes the submitted project name.
func (st Stamp) FinalName(name string, now time.Time) string {
	if st == StampDateTime {
		return name + "_" + now.Format("20060102150405")
	}
	return name + now.Format("20060102")
}

// Options controls the deterministic parts of a build.
type Options struct {
	EmailDomain string
	Stamp       Stamp
	Now         time.Time
}

func (o Options) withDefaults() Options {
	if o.EmailDomain == "" {
		o.EmailDomain = DefaultEmailDomain
	}
	if o.Stamp == "" {
		o.Stamp = StampDate
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

/* ----------------------------- wire shape ----------------------------- */

// CreateRequest is the JSON body of the create call.
type CreateRequest struct {
	ProjectName         string               `json:"projectName"`
	StudentTutor        string               `json:"studentTutor"`
	CIAFLevel           int                  `json:"ciafLevel"`
	NumImages           int                  `json:"numImages"`
	NumGroups           int                  `json:"numGroups"`
	NumMembers          int                  `json:"numMembers"`
	GroupNames          []string             `json:"groupNames"`
	RasterGroupMappings []RasterGroupMapping `json:"rasterGroupMappings"`
	MemberGroupMappings []MemberGroupMapping `json:"memberGroupMappings"`
	Members             []Member             `json:"members"`
	GrupoContenedor     string               `json:"grupoContenedor"`
}

type RasterGroupMapping struct {
	ServantMap string     `json:"servantMap"`
	ImageID    string     `json:"imageId"`
	ImageName  string     `json:"imageName"`
	Groups     []GroupRef `json:"groups"`
}

type GroupRef struct {
	GroupID          string `json:"groupId"`
	GroupName        string `json:"groupName"`
	SegmentacionName string `json:"segmentacionName"`
}

type MemberGroupMapping struct {
	MemberID string `json:"memberId"`
	GroupID  string `json:"groupId"`
}

// Member is one team member; GroupID is null for supervisors without a group.
type Member struct {
	ID      string  `json:"id"`
	Email   string  `json:"email"`
	Role    string  `json:"role"`
	GroupID *string `json:"groupId"`
}

// File is one entry of the upload bundle.
type File struct {
	Field   string             `json:"field"`
	ImageID string             `json:"imageId"`
	Name    string             `json:"name"`
	Size    int64              `json:"size"`
	Source  project.FileSource `json:"-"`
}

// Bundle is the multipart upload that precedes the create call.
type Bundle struct {
	ProjectName string `json:"projectName"`
	Files       []File `json:"files"`
}

// Result pairs the create request with its upload bundle.
type Result struct {
	Request CreateRequest `json:"payload"`
	Bundle  Bundle        `json:"files"`
}

/* ------------------------------- build -------------------------------- */

// Build validates s and, when clean, produces the create request and the
// upload bundle. Entities are emitted in creation order; associations in
// insertion order.
func Build(s project.Snapshot, opts Options) (*Result, error) {
	if vs := projectcheck.Check(s); len(vs) > 0 {
		return nil, &InvalidModelError{Violations: vs}
	}
	return assemble(s, opts.withDefaults())
}

func assemble(s project.Snapshot, o Options) (*Result, error) {
	final := o.Stamp.FinalName(s.ProjectName, o.Now)

	bundle := Bundle{ProjectName: final}
	for _, img := range s.Images {
		if img.File == nil {
			continue
		}
		if img.File.Source == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingSource, img.ID)
		}
		bundle.Files = append(bundle.Files, File{
			Field:   FilesField,
			ImageID: img.ID.String(),
			Name:    img.File.Name,
			Size:    img.File.Size,
			Source:  img.File.Source,
		})
	}
	if len(bundle.Files) == 0 {
		return nil, ErrNoFilesBound
	}

	container, ok := containerName(s)
	if !ok {
		return nil, ErrNoContainer
	}

	req := CreateRequest{
		ProjectName:         final,
		StudentTutor:        s.Mode.Wire(),
		CIAFLevel:           s.CIAFLevel,
		NumImages:           len(s.Images),
		NumGroups:           len(s.Groups),
		NumMembers:          len(s.Members),
		GroupNames:          make([]string, 0, len(s.Groups)),
		RasterGroupMappings: rasterMappings(s, o.Now),
		MemberGroupMappings: memberMappings(s),
		Members:             members(s, o.EmailDomain),
		GrupoContenedor:     container,
	}
	for _, g := range s.Groups {
		req.GroupNames = append(req.GroupNames, g.Name)
	}

	return &Result{Request: req, Bundle: bundle}, nil
}

// ServantMap is the collision-resistant name of one image's processing run.
func ServantMap(projectName string, now time.Time, id project.EntityID) string {
	return projectName + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + id.String()
}

func rasterMappings(s project.Snapshot, now time.Time) []RasterGroupMapping {
	byImage := make(map[project.EntityID][]project.Association)
	for _, a := range s.OfClass(project.ClassRaster) {
		byImage[a.From] = append(byImage[a.From], a)
	}

	out := make([]RasterGroupMapping, 0, len(byImage))
	for _, img := range s.Images {
		assocs := byImage[img.ID]
		if len(assocs) == 0 {
			continue
		}
		var name, base string
		if img.File != nil {
			name, base = img.File.Name, img.File.BaseName()
		}
		m := RasterGroupMapping{
			ServantMap: ServantMap(s.ProjectName, now, img.ID),
			ImageID:    img.ID.String(),
			ImageName:  name,
			Groups:     make([]GroupRef, 0, len(assocs)),
		}
		for _, a := range assocs {
			g, _ := s.Group(a.To)
			m.Groups = append(m.Groups, GroupRef{
				GroupID:          a.To.String(),
				GroupName:        g.Name,
				SegmentacionName: g.Name + base,
			})
		}
		out = append(out, m)
	}
	return out
}

func memberMappings(s project.Snapshot) []MemberGroupMapping {
	assocs := s.OfClass(project.ClassMember)
	out := make([]MemberGroupMapping, 0, len(assocs))
	for _, a := range assocs {
		out = append(out, MemberGroupMapping{MemberID: a.From.String(), GroupID: a.To.String()})
	}
	return out
}

func members(s project.Snapshot, domain string) []Member {
	first := make(map[project.EntityID]string)
	for _, a := range s.OfClass(project.ClassMember) {
		if _, seen := first[a.From]; !seen {
			first[a.From] = a.To.String()
		}
	}

	out := make([]Member, 0, len(s.Members))
	for _, m := range s.Members {
		pm := Member{
			ID:    m.ID.String(),
			Email: m.UserName + "@" + domain,
			Role:  string(m.Role),
		}
		if g, ok := first[m.ID]; ok {
			pm.GroupID = &g
		}
		out = append(out, pm)
	}
	return out
}

func containerName(s project.Snapshot) (string, bool) {
	for _, m := range s.Members {
		if m.Container {
			return m.UserName, true
		}
	}
	return "", false
}
