// Package locator owns the addressing grammar for course runs and blocks.
//
//	course key = "course-v1:" org "+" course "+" run
//	locator    = "block-v1:" org "+" course "+" run "+type@" kind "+block@" name
//
// Fields are non-empty and drawn from Unicode letters and digits plus
// "_-~.:". The separators '+' and '@' are reserved, which keeps parsing
// unambiguous.
package locator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentic-research/olxstore/api"
)

const (
	CoursePrefix = "course-v1:"
	BlockPrefix  = "block-v1:"

	typeTag  = "type@"
	blockTag = "block@"
)

var fieldRe = regexp.MustCompile(`^[\p{L}\p{N}_\-~.:]+$`)

// CourseKey identifies one course run.
type CourseKey struct {
	Org    string
	Course string
	Run    string
}

// NewCourseKey validates the three parts of a course key.
func NewCourseKey(org, course, run string) (CourseKey, error) {
	for _, f := range []struct{ name, val string }{
		{"org", org}, {"course", course}, {"run", run},
	} {
		if err := checkField(f.name, f.val); err != nil {
			return CourseKey{}, err
		}
	}
	return CourseKey{Org: org, Course: course, Run: run}, nil
}

// String returns the canonical course key, e.g. "course-v1:X+Y+Z".
func (k CourseKey) String() string {
	return compose(CoursePrefix, k, "", "")
}

// BlockLocator addresses one block of a given kind inside a course run.
type BlockLocator struct {
	Course CourseKey
	Kind   string
	Name   string
}

// NewBlockLocator validates every field of a block locator.
func NewBlockLocator(course CourseKey, kind, name string) (BlockLocator, error) {
	if _, err := NewCourseKey(course.Org, course.Course, course.Run); err != nil {
		return BlockLocator{}, err
	}
	if err := checkField("kind", kind); err != nil {
		return BlockLocator{}, err
	}
	if err := checkField("name", name); err != nil {
		return BlockLocator{}, err
	}
	return BlockLocator{Course: course, Kind: kind, Name: name}, nil
}

func (l BlockLocator) String() string {
	return compose(BlockPrefix, l.Course, l.Kind, l.Name)
}

// Compose validates its inputs and returns the canonical locator string.
// Every importer goes through here; nothing else formats locators.
func Compose(course CourseKey, kind, name string) (string, error) {
	l, err := NewBlockLocator(course, kind, name)
	if err != nil {
		return "", err
	}
	return l.String(), nil
}

// compose is the single formatting rule. An empty kind and name yields the
// course-level form.
func compose(prefix string, k CourseKey, kind, name string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(k.Org)
	b.WriteByte('+')
	b.WriteString(k.Course)
	b.WriteByte('+')
	b.WriteString(k.Run)
	if kind != "" || name != "" {
		b.WriteString("+" + typeTag)
		b.WriteString(kind)
		b.WriteString("+" + blockTag)
		b.WriteString(name)
	}
	return b.String()
}

// ParseCourseKey parses the output of CourseKey.String.
func ParseCourseKey(s string) (CourseKey, error) {
	rest, ok := strings.CutPrefix(s, CoursePrefix)
	if !ok {
		return CourseKey{}, fmt.Errorf("%w: %q: missing %q prefix", api.ErrAddressing, s, CoursePrefix)
	}
	parts := strings.Split(rest, "+")
	if len(parts) != 3 {
		return CourseKey{}, fmt.Errorf("%w: %q: want org+course+run", api.ErrAddressing, s)
	}
	return NewCourseKey(parts[0], parts[1], parts[2])
}

// Parse parses the output of BlockLocator.String.
func Parse(s string) (BlockLocator, error) {
	rest, ok := strings.CutPrefix(s, BlockPrefix)
	if !ok {
		return BlockLocator{}, fmt.Errorf("%w: %q: missing %q prefix", api.ErrAddressing, s, BlockPrefix)
	}
	parts := strings.Split(rest, "+")
	if len(parts) != 5 {
		return BlockLocator{}, fmt.Errorf("%w: %q: want org+course+run+type@kind+block@name", api.ErrAddressing, s)
	}
	kind, ok := strings.CutPrefix(parts[3], typeTag)
	if !ok {
		return BlockLocator{}, fmt.Errorf("%w: %q: missing %q", api.ErrAddressing, s, typeTag)
	}
	name, ok := strings.CutPrefix(parts[4], blockTag)
	if !ok {
		return BlockLocator{}, fmt.Errorf("%w: %q: missing %q", api.ErrAddressing, s, blockTag)
	}
	return NewBlockLocator(CourseKey{Org: parts[0], Course: parts[1], Run: parts[2]}, kind, name)
}

func checkField(name, val string) error {
	if val == "" {
		return fmt.Errorf("%w: empty %s", api.ErrAddressing, name)
	}
	if !fieldRe.MatchString(val) {
		return fmt.Errorf("%w: %s %q contains reserved or invalid characters", api.ErrAddressing, name, val)
	}
	return nil
}
