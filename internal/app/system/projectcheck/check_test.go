package projectcheck_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dalemusser/rasterhub/internal/app/system/projectcheck"
	"github.com/dalemusser/rasterhub/internal/domain/project"
	"github.com/stretchr/testify/require"
)

// builder wraps a session so scenarios read top to bottom.
type builder struct {
	t *testing.T
	s *project.Session
}

func newBuilder(t *testing.T, mode project.Mode, images, groups, members int) *builder {
	t.Helper()
	s := project.NewSession()
	s.SetProjectName("proyecto")
	s.SetCIAFLevel(2)
	s.SetMode(mode)
	require.NoError(t, s.SetCount(project.KindImage, images))
	require.NoError(t, s.SetCount(project.KindGroup, groups))
	require.NoError(t, s.SetCount(project.KindMember, members))
	return &builder{t: t, s: s}
}

func (b *builder) file(i int, name string) *builder {
	require.NoError(b.t, b.s.BindImageFile(project.ImageID(i), project.ImageFile{Name: name}))
	return b
}

func (b *builder) group(i int, name string) *builder {
	require.NoError(b.t, b.s.SetGroupName(project.GroupID(i), name))
	return b
}

func (b *builder) member(i int, name string, role project.Role) *builder {
	require.NoError(b.t, b.s.SetMemberUserName(project.MemberID(i), name))
	require.NoError(b.t, b.s.SetMemberRole(project.MemberID(i), role))
	return b
}

func (b *builder) container(i int) *builder {
	require.NoError(b.t, b.s.SetContainer(project.MemberID(i), true))
	return b
}

func (b *builder) link(from, to project.EntityID) *builder {
	_, err := b.s.Connect(from, to)
	require.NoError(b.t, err)
	return b
}

func (b *builder) check() []projectcheck.Violation {
	return projectcheck.Check(b.s.Snapshot())
}

func minimalStandard(t *testing.T) *builder {
	return newBuilder(t, project.ModeStandard, 1, 1, 1).
		file(0, "a01.tif").
		group(0, "g1").
		member(0, "lider", project.RoleLider).
		container(0).
		link(project.ImageID(0), project.GroupID(0)).
		link(project.MemberID(0), project.GroupID(0))
}

func TestCheck_MinimalStandardModelIsClean(t *testing.T) {
	if vs := minimalStandard(t).check(); len(vs) != 0 {
		t.Fatalf("violations: got %d, want 0:\n%s", len(vs), projectcheck.Messages(vs))
	}
}

func TestCheck_StudentTutorGroupWithoutTutor(t *testing.T) {
	vs := newBuilder(t, project.ModeStudentTutor, 2, 2, 3).
		file(0, "a01.tif").file(1, "a02.tif").
		group(0, "g1").group(1, "g2").
		member(0, "tutor", project.RoleTutor).
		member(1, "est1", project.RoleEstudiante).
		member(2, "est2", project.RoleEstudiante).
		container(0).
		link(project.ImageID(0), project.GroupID(0)).
		link(project.ImageID(1), project.GroupID(1)).
		link(project.MemberID(0), project.GroupID(0)).
		link(project.MemberID(1), project.GroupID(0)).
		link(project.MemberID(2), project.GroupID(1)).
		check()

	if len(vs) != 1 {
		t.Fatalf("violations: got %d, want 1:\n%s", len(vs), projectcheck.Messages(vs))
	}
	v := vs[0]
	if v.Code != projectcheck.CodeRoles {
		t.Errorf("code: got %q, want %q", v.Code, projectcheck.CodeRoles)
	}
	if !reflect.DeepEqual(v.Subjects, []string{"g2"}) {
		t.Errorf("subjects: got %v, want [g2]", v.Subjects)
	}
	if !strings.Contains(v.Message, "g2") {
		t.Errorf("message does not name the group: %q", v.Message)
	}
}

func TestCheck_StudentTutorGroupWithoutEstudiante(t *testing.T) {
	vs := newBuilder(t, project.ModeStudentTutor, 1, 1, 1).
		file(0, "a01.tif").
		group(0, "g1").
		member(0, "tutor", project.RoleTutor).
		container(0).
		link(project.ImageID(0), project.GroupID(0)).
		link(project.MemberID(0), project.GroupID(0)).
		check()

	if len(vs) != 1 || vs[0].Code != projectcheck.CodeRoles {
		t.Fatalf("got:\n%s", projectcheck.Messages(vs))
	}
	if !strings.Contains(vs[0].Message, "Estudiante") {
		t.Errorf("message: %q", vs[0].Message)
	}
}

func TestCheck_DuplicateImageBaseName(t *testing.T) {
	vs := newBuilder(t, project.ModeStandard, 2, 2, 2).
		file(0, "scan.tif").file(1, "scan.tiff").
		group(0, "g1").group(1, "g2").
		member(0, "lider", project.RoleLider).
		member(1, "ana", project.RoleContribuyente).
		container(0).
		link(project.ImageID(0), project.GroupID(0)).
		link(project.ImageID(1), project.GroupID(1)).
		link(project.MemberID(0), project.GroupID(0)).
		link(project.MemberID(1), project.GroupID(1)).
		check()

	if len(vs) != 1 {
		t.Fatalf("violations: got %d, want 1:\n%s", len(vs), projectcheck.Messages(vs))
	}
	if vs[0].Code != projectcheck.CodeImageFile {
		t.Errorf("code: got %q, want %q", vs[0].Code, projectcheck.CodeImageFile)
	}
	if !reflect.DeepEqual(vs[0].Subjects, []string{"scan"}) {
		t.Errorf("subjects: got %v, want [scan]", vs[0].Subjects)
	}
}

func TestCheck_EmptySessionReportsEverything(t *testing.T) {
	vs := projectcheck.Check(project.NewSession().Snapshot())

	want := []projectcheck.Code{
		projectcheck.CodeProjectName,
		projectcheck.CodeMode,
		projectcheck.CodeCIAFLevel,
		projectcheck.CodeCount,
		projectcheck.CodeCount,
		projectcheck.CodeCount,
		projectcheck.CodeContainer,
	}
	got := make([]projectcheck.Code, len(vs))
	for i, v := range vs {
		got[i] = v.Code
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("codes:\n got %v\nwant %v", got, want)
	}
}

func TestCheck_ScalarFormats(t *testing.T) {
	b := minimalStandard(t)
	b.s.SetProjectName("Mi Proyecto")
	b.s.SetCIAFLevel(7)

	vs := b.check()
	require.Len(t, vs, 2)
	require.Equal(t, projectcheck.CodeProjectName, vs[0].Code)
	require.Equal(t, projectcheck.CodeCIAFLevel, vs[1].Code)
	require.Contains(t, vs[1].Message, "7")
}

func TestCheck_NamesAndDuplicates(t *testing.T) {
	vs := newBuilder(t, project.ModeStandard, 1, 3, 3).
		file(0, "a01.tif").
		group(1, "G-2").group(2, "g3").
		member(0, "lider", project.RoleLider).
		member(1, "ana", project.RoleContribuyente).
		member(2, "ana", project.RoleContribuyente).
		container(0).
		check()

	byRule := map[int][]string{}
	for _, v := range vs {
		byRule[v.Rule] = append(byRule[v.Rule], v.Message)
	}
	require.Len(t, byRule[2], 2, "unnamed group + malformed group")
	require.Len(t, byRule[3], 1, "duplicate member")
	require.Contains(t, byRule[3][0], `"ana"`)
}

func TestCheck_UnassignedEntities(t *testing.T) {
	vs := newBuilder(t, project.ModeStandard, 2, 2, 3).
		file(0, "a01.tif").file(1, "a02.tif").
		group(0, "g1").group(1, "g2").
		member(0, "lider", project.RoleLider).
		member(1, "ana", project.RoleContribuyente).
		member(2, "luis", project.RoleContribuyente).
		container(0).
		link(project.ImageID(0), project.GroupID(0)).
		link(project.MemberID(1), project.GroupID(0)).
		check()

	codes := map[projectcheck.Code][]string{}
	for _, v := range vs {
		codes[v.Code] = append(codes[v.Code], v.Subjects...)
	}
	require.Equal(t, []string{"a02"}, codes[projectcheck.CodeImageUnassigned])
	require.Equal(t, []string{"g2"}, codes[projectcheck.CodeGroupImage])
	require.Equal(t, []string{"g2"}, codes[projectcheck.CodeGroupNoMembers])
	// lider is exempt because Líder supervises.
	require.Equal(t, []string{"luis"}, codes[projectcheck.CodeMemberUnassigned])
}

func TestCheck_ExcessImagesOnGroup(t *testing.T) {
	// Connect never allows this; snapshots built elsewhere still get checked.
	snap := minimalStandard(t).s.Snapshot()
	snap.Images = append(snap.Images, project.Image{
		ID:   project.ImageID(1),
		File: &project.ImageFile{Name: "a02.tif"},
	})
	snap.Associations = append(snap.Associations, project.Association{
		From: project.ImageID(1), To: project.GroupID(0), Class: project.ClassRaster,
	})

	vs := projectcheck.Check(snap)
	require.Len(t, vs, 1)
	require.Equal(t, projectcheck.CodeGroupImage, vs[0].Code)
	require.Contains(t, vs[0].Message, "2 imágenes")
}

func TestCheck_NoContainer(t *testing.T) {
	b := minimalStandard(t)
	require.NoError(t, b.s.SetContainer(project.MemberID(0), false))

	vs := b.check()
	require.Len(t, vs, 1)
	require.Equal(t, 10, vs[0].Rule)
}

func TestCheck_Idempotent(t *testing.T) {
	snap := newBuilder(t, project.ModeStudentTutor, 2, 2, 2).
		file(0, "x.tif").
		group(0, "g1").
		member(0, "ana", project.RoleEstudiante).
		s.Snapshot()

	first := projectcheck.Check(snap)
	second := projectcheck.Check(snap)
	if len(first) == 0 {
		t.Fatal("expected violations")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%s\n---\n%s", projectcheck.Messages(first), projectcheck.Messages(second))
	}
}
