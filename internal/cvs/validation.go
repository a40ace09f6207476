package cvs

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError describes one invalid field.
type FieldError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// ValidationError lists every invalid field of a content payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Issue)
	}
	return "invalid cv content: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidContent }

// fieldRules holds the rules of the scalar fields editable by path.
var fieldRules = map[string]string{
	"personal.email":    "omitempty,email",
	"personal.linkedin": "omitempty,url",
	"personal.website":  "omitempty,url",
	"personal.photoUrl": "omitempty,url",
	"font":              "omitempty,oneof=poppins pt-sans inter",
}

// ValidateField checks a single scalar value against the rule of its field.
// Fields without a rule accept any string.
func ValidateField(field, value string) *FieldError {
	rule, ok := fieldRules[field]
	if !ok {
		return nil
	}
	if err := validate.Var(strings.TrimSpace(value), rule); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &FieldError{Field: field, Issue: issueFor(verrs[0].Tag())}
		}
		return &FieldError{Field: field, Issue: "invalid"}
	}
	return nil
}

// NormalizeField trims values of fields that carry a syntax rule.
func NormalizeField(field, value string) string {
	if _, ok := fieldRules[field]; ok {
		return strings.TrimSpace(value)
	}
	return value
}

// Validate checks c against the schema and the entry id uniqueness rule.
func Validate(c Content) error {
	var fields []FieldError

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		for _, fe := range verrs {
			ns := fe.Namespace()
			if i := strings.IndexByte(ns, '.'); i >= 0 {
				ns = ns[i+1:]
			}
			fields = append(fields, FieldError{Field: ns, Issue: issueFor(fe.Tag())})
		}
	}

	fields = append(fields, duplicateIDs(SectionExperience, experienceIDs(c.Experience))...)
	fields = append(fields, duplicateIDs(SectionEducation, educationIDs(c.Education))...)
	fields = append(fields, duplicateIDs(SectionSkills, skillIDs(c.Skills))...)

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Normalize fills missing entry ids, replaces nil sequences with empty ones and
// defaults the font. Existing ids are never changed.
func Normalize(c *Content) {
	if c.Experience == nil {
		c.Experience = []Experience{}
	}
	if c.Education == nil {
		c.Education = []Education{}
	}
	if c.Skills == nil {
		c.Skills = []Skill{}
	}
	for i := range c.Experience {
		if strings.TrimSpace(c.Experience[i].ID) == "" {
			c.Experience[i].ID = uuid.NewString()
		}
	}
	for i := range c.Education {
		if strings.TrimSpace(c.Education[i].ID) == "" {
			c.Education[i].ID = uuid.NewString()
		}
	}
	for i := range c.Skills {
		if strings.TrimSpace(c.Skills[i].ID) == "" {
			c.Skills[i].ID = uuid.NewString()
		}
	}
	if c.Font == "" {
		c.Font = FontPoppins
	}
}

// DecodeContent parses stored or submitted JSON into a normalized, validated Content.
func DecodeContent(raw []byte) (Content, error) {
	var c Content
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &c); err != nil {
			return Content{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
	}
	Normalize(&c)
	if err := Validate(c); err != nil {
		return Content{}, err
	}
	return c, nil
}

func issueFor(tag string) string {
	switch tag {
	case "email":
		return "invalid email address"
	case "url":
		return "invalid url"
	case "oneof":
		return "must be one of poppins, pt-sans, inter"
	case "required":
		return "required"
	}
	return "invalid"
}

func duplicateIDs(section string, ids []string) []FieldError {
	seen := make(map[string]struct{}, len(ids))
	var out []FieldError
	for i, id := range ids {
		if _, ok := seen[id]; ok {
			out = append(out, FieldError{Field: fmt.Sprintf("%s[%d].id", section, i), Issue: "duplicate id"})
			continue
		}
		seen[id] = struct{}{}
	}
	return out
}

func experienceIDs(in []Experience) []string {
	out := make([]string, len(in))
	for i := range in {
		out[i] = in[i].ID
	}
	return out
}

func educationIDs(in []Education) []string {
	out := make([]string, len(in))
	for i := range in {
		out[i] = in[i].ID
	}
	return out
}

func skillIDs(in []Skill) []string {
	out := make([]string, len(in))
	for i := range in {
		out[i] = in[i].ID
	}
	return out
}
