package payload_test

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"github.com/dalemusser/rasterhub/internal/domain/project"
	"github.com/stretchr/testify/require"
)

type textSource string

func (s textSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(s))), nil
}

var fixedNow = time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)

// minimalSession is one image (a01.tif) in group g1 with one Líder container member.
func minimalSession(t *testing.T) *project.Session {
	t.Helper()
	s := project.NewSession()
	s.SetProjectName("demo")
	s.SetCIAFLevel(1)
	s.SetMode(project.ModeStandard)
	require.NoError(t, s.SetCount(project.KindImage, 1))
	require.NoError(t, s.SetCount(project.KindGroup, 1))
	require.NoError(t, s.SetCount(project.KindMember, 1))
	require.NoError(t, s.BindImageFile(project.ImageID(0), project.ImageFile{Name: "a01.tif", Size: 3, Source: textSource("abc")}))
	require.NoError(t, s.SetGroupName(project.GroupID(0), "g1"))
	require.NoError(t, s.SetMemberUserName(project.MemberID(0), "jefe"))
	require.NoError(t, s.SetMemberRole(project.MemberID(0), project.RoleLider))
	require.NoError(t, s.SetContainer(project.MemberID(0), true))
	_, err := s.Connect(project.ImageID(0), project.GroupID(0))
	require.NoError(t, err)
	_, err = s.Connect(project.MemberID(0), project.GroupID(0))
	require.NoError(t, err)
	return s
}

func TestBuild_MinimalScenario(t *testing.T) {
	res, err := payload.Build(minimalSession(t).Snapshot(), payload.Options{Now: fixedNow})
	require.NoError(t, err)

	req := res.Request
	if req.ProjectName != "demo20240307" {
		t.Errorf("projectName: got %q, want %q", req.ProjectName, "demo20240307")
	}
	if req.StudentTutor != "no" {
		t.Errorf("studentTutor: got %q, want %q", req.StudentTutor, "no")
	}
	require.Len(t, req.RasterGroupMappings, 1)
	rm := req.RasterGroupMappings[0]
	if rm.ImageID != "imagen-0" {
		t.Errorf("imageId: got %q", rm.ImageID)
	}
	if rm.ImageName != "a01.tif" {
		t.Errorf("imageName: got %q", rm.ImageName)
	}
	wantServant := "demo-" + "1709820309000" + "-imagen-0"
	if rm.ServantMap != wantServant {
		t.Errorf("servantMap: got %q, want %q", rm.ServantMap, wantServant)
	}
	require.Len(t, rm.Groups, 1)
	if got := rm.Groups[0]; got.GroupID != "grupo-0" || got.GroupName != "g1" || got.SegmentacionName != "g1a01" {
		t.Errorf("group ref: got %+v", got)
	}

	require.Equal(t, []payload.MemberGroupMapping{{MemberID: "miembro-0", GroupID: "grupo-0"}}, req.MemberGroupMappings)
	require.Len(t, req.Members, 1)
	m := req.Members[0]
	if m.Email != "jefe@udistrital.edu.co" || m.Role != "Líder" || m.GroupID == nil || *m.GroupID != "grupo-0" {
		t.Errorf("member: got %+v", m)
	}
	if req.GrupoContenedor != "jefe" {
		t.Errorf("grupoContenedor: got %q", req.GrupoContenedor)
	}

	require.Equal(t, "demo20240307", res.Bundle.ProjectName)
	require.Len(t, res.Bundle.Files, 1)
	if f := res.Bundle.Files[0]; f.Field != payload.FilesField || f.Name != "a01.tif" {
		t.Errorf("bundle file: got %+v", f)
	}
}

func TestBuild_WireFieldNames(t *testing.T) {
	res, err := payload.Build(minimalSession(t).Snapshot(), payload.Options{Now: fixedNow})
	require.NoError(t, err)

	raw, err := json.Marshal(res.Request)
	require.NoError(t, err)
	for _, key := range []string{
		`"projectName"`, `"studentTutor"`, `"ciafLevel"`, `"numImages"`, `"numGroups"`,
		`"numMembers"`, `"groupNames"`, `"rasterGroupMappings"`, `"servantMap"`,
		`"segmentacionName"`, `"memberGroupMappings"`, `"members"`, `"grupoContenedor"`,
	} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("missing key %s in %s", key, raw)
		}
	}
}

func TestBuild_SupervisorWithoutGroupHasNullGroupID(t *testing.T) {
	s := minimalSession(t)
	require.NoError(t, s.SetCount(project.KindMember, 2))
	// Count change cleared the graph; rebuild it.
	require.NoError(t, s.SetMemberUserName(project.MemberID(1), "ana"))
	_, err := s.Connect(project.ImageID(0), project.GroupID(0))
	require.NoError(t, err)
	_, err = s.Connect(project.MemberID(1), project.GroupID(0))
	require.NoError(t, err)

	res, err := payload.Build(s.Snapshot(), payload.Options{Now: fixedNow})
	require.NoError(t, err)
	require.Nil(t, res.Request.Members[0].GroupID)
	require.Equal(t, "grupo-0", *res.Request.Members[1].GroupID)

	raw, err := json.Marshal(res.Request.Members[0])
	require.NoError(t, err)
	require.Contains(t, string(raw), `"groupId":null`)
}

func TestBuild_InvalidModel(t *testing.T) {
	s := minimalSession(t)
	s.SetProjectName("")

	_, err := payload.Build(s.Snapshot(), payload.Options{Now: fixedNow})
	if !errors.Is(err, payload.ErrInvalidModel) {
		t.Fatalf("err: got %v, want ErrInvalidModel", err)
	}
	var ime *payload.InvalidModelError
	require.ErrorAs(t, err, &ime)
	require.Len(t, ime.Violations, 1)
}

func TestBuild_DateTimeStamp(t *testing.T) {
	res, err := payload.Build(minimalSession(t).Snapshot(), payload.Options{Now: fixedNow, Stamp: payload.StampDateTime, EmailDomain: "example.org"})
	require.NoError(t, err)
	require.Equal(t, "demo_20240307140509", res.Request.ProjectName)
	require.Equal(t, "jefe@example.org", res.Request.Members[0].Email)
}

func TestParseStamp(t *testing.T) {
	for in, want := range map[string]payload.Stamp{"": payload.StampDate, "date": payload.StampDate, "DateTime": payload.StampDateTime} {
		got, err := payload.ParseStamp(in)
		if err != nil || got != want {
			t.Errorf("ParseStamp(%q): got %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := payload.ParseStamp("week"); !errors.Is(err, payload.ErrUnknownStamp) {
		t.Errorf("ParseStamp(week): got %v", err)
	}
}

func TestBuild_EveryReferencedGroupExists(t *testing.T) {
	s := project.NewSession()
	s.SetProjectName("multi")
	s.SetCIAFLevel(3)
	s.SetMode(project.ModeStandard)
	require.NoError(t, s.SetCount(project.KindImage, 2))
	require.NoError(t, s.SetCount(project.KindGroup, 3))
	require.NoError(t, s.SetCount(project.KindMember, 3))
	for i, name := range []string{"r1", "r2"} {
		require.NoError(t, s.BindImageFile(project.ImageID(i), project.ImageFile{Name: name + ".tiff", Source: textSource(name)}))
	}
	for i, name := range []string{"ga", "gb", "gc"} {
		require.NoError(t, s.SetGroupName(project.GroupID(i), name))
	}
	for i, name := range []string{"lider", "ana", "luis"} {
		require.NoError(t, s.SetMemberUserName(project.MemberID(i), name))
	}
	require.NoError(t, s.SetMemberRole(project.MemberID(0), project.RoleLider))
	require.NoError(t, s.SetContainer(project.MemberID(0), true))
	for _, e := range [][2]project.EntityID{
		{project.ImageID(0), project.GroupID(0)},
		{project.ImageID(0), project.GroupID(1)},
		{project.ImageID(1), project.GroupID(2)},
		{project.MemberID(1), project.GroupID(0)},
		{project.MemberID(1), project.GroupID(1)},
		{project.MemberID(2), project.GroupID(2)},
	} {
		_, err := s.Connect(e[0], e[1])
		require.NoError(t, err)
	}

	snap := s.Snapshot()
	res, err := payload.Build(snap, payload.Options{Now: fixedNow})
	require.NoError(t, err)

	require.Len(t, res.Request.RasterGroupMappings, 2)
	require.Len(t, res.Request.RasterGroupMappings[0].Groups, 2)
	known := map[string]bool{}
	for _, g := range snap.Groups {
		known[g.ID.String()] = true
	}
	for _, rm := range res.Request.RasterGroupMappings {
		for _, g := range rm.Groups {
			if !known[g.GroupID] {
				t.Errorf("unknown group %q in raster mapping", g.GroupID)
			}
		}
	}
	for _, mm := range res.Request.MemberGroupMappings {
		if !known[mm.GroupID] {
			t.Errorf("unknown group %q in member mapping", mm.GroupID)
		}
	}
	require.Equal(t, "gbr1", res.Request.RasterGroupMappings[0].Groups[1].SegmentacionName)
	require.Equal(t, []string{"ga", "gb", "gc"}, res.Request.GroupNames)
	// ana's first outgoing association wins.
	require.Equal(t, "grupo-0", *res.Request.Members[1].GroupID)
}
