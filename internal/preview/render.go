// Package preview renders CV content as a printable HTML document.
package preview

import (
	"bytes"
	"embed"
	"html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"vitaeforge/internal/cvs"
)

//go:embed templates/cv.html.tmpl
var templatesFS embed.FS

var (
	cvTemplate = template.Must(template.ParseFS(templatesFS, "templates/cv.html.tmpl"))
	strict     = bluemonday.StrictPolicy()
)

// Options controls the look of a rendered CV.
type Options struct {
	AccentColor string
	Font        string
	// Print adds print CSS and opens the print dialog on load.
	Print bool
}

type page struct {
	Name       string
	JobTitle   string
	PhotoURL   string
	Accent     template.CSS
	FontFamily template.CSS
	FontImport string
	Print      bool
	Contact    []string
	Summary    string
	Experience []cvs.Experience
	Education  []cvs.Education
	Skills     []string
}

// Render renders content as a standalone HTML document.
func Render(content cvs.Content, opts Options) ([]byte, error) {
	font := FontFor(opts.Font)
	if opts.Font == "" && content.Font != "" {
		font = FontFor(string(content.Font))
	}
	style := FontMap[font]

	p := page{
		Name:       clean(content.Personal.FullName),
		JobTitle:   clean(content.Personal.JobTitle),
		PhotoURL:   photoURL(content.Personal.PhotoURL),
		Accent:     template.CSS(AccentColor(opts.AccentColor)),
		FontFamily: template.CSS(style.Family),
		FontImport: style.Import,
		Print:      opts.Print,
		Summary:    clean(content.Summary),
	}
	p.Contact = nonEmpty(
		content.Personal.Email,
		content.Personal.Phone,
		content.Personal.Address,
		content.Personal.LinkedIn,
		content.Personal.Website,
	)
	for _, e := range content.Experience {
		p.Experience = append(p.Experience, cvs.Experience{
			ID:          e.ID,
			JobTitle:    clean(e.JobTitle),
			Company:     clean(e.Company),
			StartDate:   clean(e.StartDate),
			EndDate:     clean(e.EndDate),
			Description: clean(e.Description),
		})
	}
	for _, e := range content.Education {
		p.Education = append(p.Education, cvs.Education{
			ID:          e.ID,
			Institution: clean(e.Institution),
			Degree:      clean(e.Degree),
			StartDate:   clean(e.StartDate),
			EndDate:     clean(e.EndDate),
		})
	}
	for _, s := range content.Skills {
		if name := clean(s.Name); name != "" {
			p.Skills = append(p.Skills, name)
		}
	}

	var buf bytes.Buffer
	if err := cvTemplate.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// clean strips markup from free text. The template escapes the result again,
// so entities produced by the policy are decoded first.
func clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = clean(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func photoURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "/") {
		return raw
	}
	return ""
}
