// internal/app/system/projectcheck/check.go
package projectcheck

import (
	"fmt"
	"strings"

	"github.com/dalemusser/rasterhub/internal/domain/project"
)

// Code identifies the rule family a violation belongs to.
type Code string

const (
	CodeProjectName      Code = "project_name"
	CodeMode             Code = "mode"
	CodeCIAFLevel        Code = "ciaf_level"
	CodeCount            Code = "count"
	CodeGroupName        Code = "group_name"
	CodeMemberName       Code = "member_name"
	CodeImageFile        Code = "image_file"
	CodeRoles            Code = "roles"
	CodeImageUnassigned  Code = "image_unassigned"
	CodeGroupImage       Code = "group_image"
	CodeGroupNoMembers   Code = "group_no_members"
	CodeMemberUnassigned Code = "member_unassigned"
	CodeContainer        Code = "container"
)

// Valid CIAF levels accepted by the processing backend.
const (
	MinCIAFLevel = 1
	MaxCIAFLevel = 3
)

// Violation is one human-readable completeness or consistency defect.
// Subjects lists the entity labels the message names, in registry order.
type Violation struct {
	Rule     int      `json:"rule"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Subjects []string `json:"subjects,omitempty"`
}

func (v Violation) String() string { return v.Message }

// Check runs every rule against s and returns all violations in rule order.
// It never stops early and never mutates s. An empty result means the model
// can be submitted.
func Check(s project.Snapshot) []Violation {
	c := newChecker(s)
	c.scalars()
	c.groupNames()
	c.memberNames()
	c.imageFiles()
	c.roleSet()
	c.imagesAssigned()
	c.groupImages()
	c.groupMembers()
	c.membersAssigned()
	c.container()
	return c.out
}

// Messages joins the violation messages, one per line.
func Messages(vs []Violation) string {
	lines := make([]string, len(vs))
	for i, v := range vs {
		lines[i] = v.Message
	}
	return strings.Join(lines, "\n")
}

type checker struct {
	s    project.Snapshot
	rule int
	out  []Violation

	rasterIn map[project.EntityID]int // incoming image associations per group
	memberIn map[project.EntityID][]project.EntityID
	outgoing map[project.EntityID]int // outgoing associations per image/member
}

func newChecker(s project.Snapshot) *checker {
	c := &checker{
		s:        s,
		rasterIn: make(map[project.EntityID]int),
		memberIn: make(map[project.EntityID][]project.EntityID),
		outgoing: make(map[project.EntityID]int),
	}
	for _, a := range s.Associations {
		c.outgoing[a.From]++
		switch a.Class {
		case project.ClassRaster:
			c.rasterIn[a.To]++
		case project.ClassMember:
			c.memberIn[a.To] = append(c.memberIn[a.To], a.From)
		}
	}
	return c
}

func (c *checker) add(code Code, msg string, subjects ...string) {
	c.out = append(c.out, Violation{Rule: c.rule, Code: code, Message: msg, Subjects: subjects})
}

/* ------------------------------ rule 1 ------------------------------ */

func (c *checker) scalars() {
	c.rule = 1
	switch {
	case c.s.ProjectName == "":
		c.add(CodeProjectName, "Ingresar nombre del proyecto")
	case !project.IsWellFormedName(c.s.ProjectName):
		c.add(CodeProjectName, "El nombre del proyecto solo debe contener minúsculas y números")
	}

	switch c.s.Mode {
	case project.ModeStudentTutor, project.ModeStandard:
	case project.ModeUnset:
		c.add(CodeMode, "Seleccionar opción ¿Es estudiante-tutor?")
	default:
		c.add(CodeMode, "Valor inválido en ¿Es estudiante-tutor?")
	}

	switch {
	case c.s.CIAFLevel == 0:
		c.add(CodeCIAFLevel, "Seleccionar nivel CIAF")
	case c.s.CIAFLevel < MinCIAFLevel || c.s.CIAFLevel > MaxCIAFLevel:
		c.add(CodeCIAFLevel, fmt.Sprintf("Nivel CIAF inválido: %d", c.s.CIAFLevel))
	}

	if len(c.s.Images) == 0 {
		c.add(CodeCount, "Debe indicar al menos una imagen")
	}
	if len(c.s.Groups) == 0 {
		c.add(CodeCount, "Debe indicar al menos un grupo")
	}
	if len(c.s.Members) == 0 {
		c.add(CodeCount, "Debe indicar al menos un miembro")
	}
}

/* ---------------------------- rules 2-4 ---------------------------- */

func (c *checker) groupNames() {
	c.rule = 2
	var unnamed, malformed []string
	seen := make(map[string]int)
	var dups []string
	for _, g := range c.s.Groups {
		switch {
		case g.Name == "":
			unnamed = append(unnamed, g.ID.String())
			continue
		case !project.IsWellFormedName(g.Name):
			malformed = append(malformed, g.Name)
		}
		seen[g.Name]++
		if seen[g.Name] == 2 {
			dups = append(dups, g.Name)
		}
	}
	if len(unnamed) > 0 {
		c.add(CodeGroupName, "Hay grupos sin nombrar", unnamed...)
	}
	for _, name := range malformed {
		c.add(CodeGroupName, fmt.Sprintf("Nombre de grupo inválido %q, solo ingresar números y minúsculas", name), name)
	}
	for _, name := range dups {
		c.add(CodeGroupName, fmt.Sprintf("Nombre de grupo duplicado: %q", name), name)
	}
}

func (c *checker) memberNames() {
	c.rule = 3
	var unnamed, malformed []string
	seen := make(map[string]int)
	var dups []string
	for _, m := range c.s.Members {
		switch {
		case m.UserName == "":
			unnamed = append(unnamed, m.ID.String())
			continue
		case !project.IsWellFormedName(m.UserName):
			malformed = append(malformed, m.UserName)
		}
		seen[m.UserName]++
		if seen[m.UserName] == 2 {
			dups = append(dups, m.UserName)
		}
	}
	if len(unnamed) > 0 {
		c.add(CodeMemberName, "Hay miembros sin nombrar", unnamed...)
	}
	for _, name := range malformed {
		c.add(CodeMemberName, fmt.Sprintf("Nombre de miembro inválido %q, solo ingresar números y minúsculas", name), name)
	}
	for _, name := range dups {
		c.add(CodeMemberName, fmt.Sprintf("Nombre de miembro duplicado: %q", name), name)
	}
}

func (c *checker) imageFiles() {
	c.rule = 4
	var missing []string
	seen := make(map[string]int)
	var dups []string
	for _, img := range c.s.Images {
		if img.File == nil {
			missing = append(missing, img.ID.String())
			continue
		}
		base := strings.ToLower(img.File.BaseName())
		seen[base]++
		if seen[base] == 2 {
			dups = append(dups, base)
		}
	}
	if len(missing) > 0 {
		c.add(CodeImageFile, "Faltan imágenes por cargar: "+strings.Join(missing, ", "), missing...)
	}
	for _, base := range dups {
		c.add(CodeImageFile, fmt.Sprintf("Se han cargado varias imágenes con el mismo nombre: %s", base), base)
	}
}

/* ------------------------------ rule 5 ------------------------------ */

func (c *checker) roleSet() {
	c.rule = 5
	switch c.s.Mode {
	case project.ModeStandard:
		if !c.anyRole(project.RoleLider) {
			c.add(CodeRoles, "Debe haber al menos un miembro con rol de Líder")
		}
	case project.ModeStudentTutor:
		if !c.anyRole(project.RoleTutor) {
			c.add(CodeRoles, "Debe haber al menos un miembro con rol de Tutor")
		}
		for _, g := range c.s.Groups {
			if !c.groupHasRole(g.ID, project.RoleTutor) {
				label := groupLabel(g)
				c.add(CodeRoles, fmt.Sprintf("El grupo %q no tiene ningún Tutor asignado", label), label)
			}
		}
		for _, g := range c.s.Groups {
			if !c.groupHasRole(g.ID, project.RoleEstudiante) {
				label := groupLabel(g)
				c.add(CodeRoles, fmt.Sprintf("El grupo %q no tiene ningún Estudiante asignado", label), label)
			}
		}
	}
}

func (c *checker) anyRole(r project.Role) bool {
	for _, m := range c.s.Members {
		if m.Role == r {
			return true
		}
	}
	return false
}

func (c *checker) groupHasRole(g project.EntityID, r project.Role) bool {
	for _, from := range c.memberIn[g] {
		if m, ok := c.s.Member(from); ok && m.Role == r {
			return true
		}
	}
	return false
}

/* ---------------------------- rules 6-9 ---------------------------- */

func (c *checker) imagesAssigned() {
	c.rule = 6
	var loose []string
	for _, img := range c.s.Images {
		if c.outgoing[img.ID] == 0 {
			loose = append(loose, imageLabel(img))
		}
	}
	if len(loose) > 0 {
		c.add(CodeImageUnassigned,
			"Las siguientes imágenes no están relacionadas con ningún grupo: "+strings.Join(loose, ", "),
			loose...)
	}
}

func (c *checker) groupImages() {
	c.rule = 7
	var missing []string
	for _, g := range c.s.Groups {
		if c.rasterIn[g.ID] == 0 {
			missing = append(missing, groupLabel(g))
		}
	}
	if len(missing) > 0 {
		c.add(CodeGroupImage,
			fmt.Sprintf("Los siguientes grupos no tienen imágenes relacionadas (%d): %s", len(missing), strings.Join(missing, ", ")),
			missing...)
	}
	for _, g := range c.s.Groups {
		if n := c.rasterIn[g.ID]; n > 1 {
			label := groupLabel(g)
			c.add(CodeGroupImage,
				fmt.Sprintf("El grupo %q tiene %d imágenes relacionadas. Solo se permite una.", label, n),
				label)
		}
	}
}

func (c *checker) groupMembers() {
	c.rule = 8
	var empty []string
	for _, g := range c.s.Groups {
		if len(c.memberIn[g.ID]) == 0 {
			empty = append(empty, groupLabel(g))
		}
	}
	if len(empty) > 0 {
		c.add(CodeGroupNoMembers,
			"Los siguientes grupos no tienen miembros relacionados: "+strings.Join(empty, ", "),
			empty...)
	}
}

func (c *checker) membersAssigned() {
	c.rule = 9
	var loose []string
	for _, m := range c.s.Members {
		if m.Role.Supervises() {
			continue
		}
		if c.outgoing[m.ID] == 0 {
			loose = append(loose, memberLabel(m))
		}
	}
	if len(loose) > 0 {
		c.add(CodeMemberUnassigned,
			"Los siguientes miembros no están relacionados con ningún grupo: "+strings.Join(loose, ", "),
			loose...)
	}
}

/* ------------------------------ rule 10 ----------------------------- */

func (c *checker) container() {
	c.rule = 10
	var holders []string
	for _, m := range c.s.Members {
		if m.Container {
			holders = append(holders, memberLabel(m))
		}
	}
	switch len(holders) {
	case 1:
	case 0:
		c.add(CodeContainer, "Debe seleccionar un miembro Tutor/Líder como contenedor del esquema.")
	default:
		c.add(CodeContainer, "Solo un miembro puede ser contenedor del esquema: "+strings.Join(holders, ", "), holders...)
	}
}

/* ------------------------------ labels ------------------------------ */

func imageLabel(img project.Image) string {
	if img.File != nil {
		if base := img.File.BaseName(); base != "" {
			return base
		}
	}
	return img.ID.String()
}

func groupLabel(g project.Group) string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID.String()
}

func memberLabel(m project.Member) string {
	if m.UserName != "" {
		return m.UserName
	}
	return m.ID.String()
}
