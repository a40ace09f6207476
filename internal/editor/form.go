package editor

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"vitaeforge/internal/cvs"
)

// Snapshot is the saveable state of a form.
type Snapshot struct {
	Title   string
	Content cvs.Content
}

// Equal reports whether two snapshots hold the same values.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Title == o.Title && s.Content.Equal(o.Content)
}

// View is what the user sees: valid values with rejected raw input on top.
type View struct {
	Title   string
	Content cvs.Content
	Errors  []cvs.FieldError
}

type rejected struct {
	raw   string
	issue string
}

// Form holds the edit state of one CV. A rejected value blocks only its own field.
type Form struct {
	mu       sync.Mutex
	title    string
	content  cvs.Content
	rejected map[string]rejected
}

// NewForm builds a form from persisted state.
func NewForm(title string, content cvs.Content) *Form {
	c := content.Clone()
	cvs.Normalize(&c)
	return &Form{title: title, content: c, rejected: make(map[string]rejected)}
}

// Snapshot returns the last valid state.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{Title: f.title, Content: f.content.Clone()}
}

// View returns the visible state.
func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{Title: f.title, Content: f.content.Clone(), Errors: []cvs.FieldError{}}
	paths := make([]string, 0, len(f.rejected))
	for p := range f.rejected {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		r := f.rejected[p]
		if p == "title" {
			v.Title = r.raw
		} else if ptr, err := fieldPtr(&v.Content, p); err == nil {
			*ptr = r.raw
		}
		v.Errors = append(v.Errors, cvs.FieldError{Field: p, Issue: r.issue})
	}
	return v
}

// Field returns the visible value at path.
func (f *Form) Field(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rejected[path]; ok {
		return r.raw, nil
	}
	if path == "title" {
		return f.title, nil
	}
	ptr, err := fieldPtr(&f.content, path)
	if err != nil {
		return "", err
	}
	return *ptr, nil
}

// SetField sets one scalar field. Paths look like personal.email, summary,
// font or experience.<entryId>.description. An invalid value is kept for
// display and reported; the saveable state keeps the last valid value.
func (f *Form) SetField(path, value string) (*cvs.FieldError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setFieldLocked(path, value)
}

// SetFields applies several edits at once. Every path is resolved before
// any value is written, so an unknown path leaves the form untouched.
// Field errors are returned in path order.
func (f *Form) SetFields(fields map[string]string) ([]cvs.FieldError, error) {
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, path := range paths {
		if path == "title" {
			continue
		}
		if _, err := fieldPtr(&f.content, path); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	var errs []cvs.FieldError
	for _, path := range paths {
		fe, err := f.setFieldLocked(path, fields[path])
		if err != nil {
			return errs, fmt.Errorf("%s: %w", path, err)
		}
		if fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs, nil
}

func (f *Form) setFieldLocked(path, value string) (*cvs.FieldError, error) {
	if path == "title" {
		title := strings.TrimSpace(value)
		if title == "" {
			fe := &cvs.FieldError{Field: path, Issue: "required"}
			f.rejected[path] = rejected{raw: value, issue: fe.Issue}
			return fe, nil
		}
		delete(f.rejected, path)
		f.title = title
		return nil, nil
	}

	ptr, err := fieldPtr(&f.content, path)
	if err != nil {
		return nil, err
	}
	if fe := cvs.ValidateField(path, value); fe != nil {
		f.rejected[path] = rejected{raw: value, issue: fe.Issue}
		return fe, nil
	}
	delete(f.rejected, path)
	value = cvs.NormalizeField(path, value)
	if path == "font" && value == "" {
		value = string(cvs.FontPoppins)
	}
	*ptr = value
	return nil, nil
}

// SetTitle renames the CV.
func (f *Form) SetTitle(title string) (*cvs.FieldError, error) {
	return f.SetField("title", title)
}

// AddEntry appends a blank entry and returns its id.
func (f *Form) AddEntry(section string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.NewString()
	switch section {
	case cvs.SectionExperience:
		f.content.Experience = append(f.content.Experience, cvs.Experience{ID: id})
	case cvs.SectionEducation:
		f.content.Education = append(f.content.Education, cvs.Education{ID: id})
	case cvs.SectionSkills:
		f.content.Skills = append(f.content.Skills, cvs.Skill{ID: id})
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	return id, nil
}

// RemoveEntry deletes an entry by id.
func (f *Form) RemoveEntry(section, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var i int
	switch section {
	case cvs.SectionExperience:
		i = slices.IndexFunc(f.content.Experience, func(e cvs.Experience) bool { return e.ID == id })
		if i >= 0 {
			f.content.Experience = slices.Delete(f.content.Experience, i, i+1)
		}
	case cvs.SectionEducation:
		i = slices.IndexFunc(f.content.Education, func(e cvs.Education) bool { return e.ID == id })
		if i >= 0 {
			f.content.Education = slices.Delete(f.content.Education, i, i+1)
		}
	case cvs.SectionSkills:
		i = slices.IndexFunc(f.content.Skills, func(e cvs.Skill) bool { return e.ID == id })
		if i >= 0 {
			f.content.Skills = slices.Delete(f.content.Skills, i, i+1)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	if i < 0 {
		return ErrEntryNotFound
	}
	prefix := section + "." + id + "."
	for p := range f.rejected {
		if strings.HasPrefix(p, prefix) {
			delete(f.rejected, p)
		}
	}
	return nil
}

// MoveEntry moves an entry to index, clamped to the sequence bounds. Ids are kept.
func (f *Form) MoveEntry(section, id string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch section {
	case cvs.SectionExperience:
		return moveByID(f.content.Experience, func(e cvs.Experience) bool { return e.ID == id }, index)
	case cvs.SectionEducation:
		return moveByID(f.content.Education, func(e cvs.Education) bool { return e.ID == id }, index)
	case cvs.SectionSkills:
		return moveByID(f.content.Skills, func(e cvs.Skill) bool { return e.ID == id }, index)
	}
	return fmt.Errorf("%w: %s", ErrUnknownSection, section)
}

// ReplaceContent swaps in a whole payload after validation. Rejected field
// values are discarded.
func (f *Form) ReplaceContent(content cvs.Content) error {
	c := content.Clone()
	cvs.Normalize(&c)
	if err := cvs.Validate(c); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = c
	f.rejected = make(map[string]rejected)
	return nil
}

func moveByID[E any](items []E, match func(E) bool, index int) error {
	from := slices.IndexFunc(items, match)
	if from < 0 {
		return ErrEntryNotFound
	}
	if index < 0 {
		index = 0
	}
	if index >= len(items) {
		index = len(items) - 1
	}
	item := items[from]
	if from < index {
		copy(items[from:index], items[from+1:index+1])
	} else {
		copy(items[index+1:from+1], items[index:from])
	}
	items[index] = item
	return nil
}

// textFields are the free-text fields the refine action may rewrite.
var textFields = map[string]bool{
	"summary":     true,
	"description": true,
}

// IsTextField reports whether path points at a free-text field.
func IsTextField(path string) bool {
	parts := strings.Split(path, ".")
	return textFields[parts[len(parts)-1]]
}

func fieldPtr(c *cvs.Content, path string) (*string, error) {
	parts := strings.Split(path, ".")
	switch {
	case len(parts) == 1 && parts[0] == "summary":
		return &c.Summary, nil
	case len(parts) == 1 && parts[0] == "font":
		return (*string)(&c.Font), nil
	case len(parts) == 2 && parts[0] == "personal":
		return personalField(&c.Personal, parts[1])
	case len(parts) == 3:
		return entryField(c, parts[0], parts[1], parts[2])
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownField, path)
}

func personalField(p *cvs.Personal, name string) (*string, error) {
	switch name {
	case "fullName":
		return &p.FullName, nil
	case "jobTitle":
		return &p.JobTitle, nil
	case "email":
		return &p.Email, nil
	case "phone":
		return &p.Phone, nil
	case "address":
		return &p.Address, nil
	case "linkedin":
		return &p.LinkedIn, nil
	case "website":
		return &p.Website, nil
	case "photoUrl":
		return &p.PhotoURL, nil
	}
	return nil, fmt.Errorf("%w: personal.%s", ErrUnknownField, name)
}

func entryField(c *cvs.Content, section, id, name string) (*string, error) {
	switch section {
	case cvs.SectionExperience:
		i := slices.IndexFunc(c.Experience, func(e cvs.Experience) bool { return e.ID == id })
		if i < 0 {
			return nil, ErrEntryNotFound
		}
		e := &c.Experience[i]
		switch name {
		case "jobTitle":
			return &e.JobTitle, nil
		case "company":
			return &e.Company, nil
		case "startDate":
			return &e.StartDate, nil
		case "endDate":
			return &e.EndDate, nil
		case "description":
			return &e.Description, nil
		}
	case cvs.SectionEducation:
		i := slices.IndexFunc(c.Education, func(e cvs.Education) bool { return e.ID == id })
		if i < 0 {
			return nil, ErrEntryNotFound
		}
		e := &c.Education[i]
		switch name {
		case "institution":
			return &e.Institution, nil
		case "degree":
			return &e.Degree, nil
		case "startDate":
			return &e.StartDate, nil
		case "endDate":
			return &e.EndDate, nil
		}
	case cvs.SectionSkills:
		i := slices.IndexFunc(c.Skills, func(e cvs.Skill) bool { return e.ID == id })
		if i < 0 {
			return nil, ErrEntryNotFound
		}
		if name == "name" {
			return &c.Skills[i].Name, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	return nil, fmt.Errorf("%w: %s.%s.%s", ErrUnknownField, section, id, name)
}
