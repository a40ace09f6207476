package cvs

import "slices"

// Font is a typeface key from the closed set supported by the preview.
type Font string

const (
	FontPoppins Font = "poppins"
	FontPTSans  Font = "pt-sans"
	FontInter   Font = "inter"
)

// Fonts lists the supported fonts, default first.
var Fonts = []Font{FontPoppins, FontPTSans, FontInter}

// AccentColors is the preview palette, default first.
var AccentColors = []string{"#64B5F6", "#818CF8", "#F87171", "#4ADE80", "#FBBF24", "#90A4AE"}

// Section names of the entry sequences.
const (
	SectionExperience = "experience"
	SectionEducation  = "education"
	SectionSkills     = "skills"
)

// Personal holds contact details.
type Personal struct {
	FullName string `json:"fullName"`
	JobTitle string `json:"jobTitle"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	LinkedIn string `json:"linkedin" validate:"omitempty,url"`
	Website  string `json:"website" validate:"omitempty,url"`
	PhotoURL string `json:"photoUrl" validate:"omitempty,url"`
}

// Experience is one job entry.
type Experience struct {
	ID          string `json:"id" validate:"required"`
	JobTitle    string `json:"jobTitle"`
	Company     string `json:"company"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
}

// Education is one study entry.
type Education struct {
	ID          string `json:"id" validate:"required"`
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

// Skill is one skill entry.
type Skill struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
}

// Content is the structured payload of a CV.
type Content struct {
	Personal   Personal     `json:"personal"`
	Summary    string       `json:"summary"`
	Experience []Experience `json:"experience" validate:"dive"`
	Education  []Education  `json:"education" validate:"dive"`
	Skills     []Skill      `json:"skills" validate:"dive"`
	Font       Font         `json:"font,omitempty" validate:"omitempty,oneof=poppins pt-sans inter"`
}

// Clone returns a deep copy of c.
func (c Content) Clone() Content {
	out := c
	out.Experience = slices.Clone(c.Experience)
	out.Education = slices.Clone(c.Education)
	out.Skills = slices.Clone(c.Skills)
	return out
}

// Equal reports whether c and o hold the same values. Nil and empty sequences are equal.
func (c Content) Equal(o Content) bool {
	return c.Personal == o.Personal &&
		c.Summary == o.Summary &&
		c.Font == o.Font &&
		slices.Equal(c.Experience, o.Experience) &&
		slices.Equal(c.Education, o.Education) &&
		slices.Equal(c.Skills, o.Skills)
}

// DefaultContent returns the sample CV new documents start from.
func DefaultContent() Content {
	return Content{
		Personal: Personal{
			FullName: "Jane Doe",
			JobTitle: "Software Engineer",
			Email:    "jane.doe@email.com",
			Phone:    "123-456-7890",
			Address:  "City, Country",
			LinkedIn: "https://linkedin.com/in/janedoe",
			Website:  "https://janedoe.dev",
			PhotoURL: "https://picsum.photos/seed/1/200/200",
		},
		Summary: "Innovative and deadline-driven Software Engineer with 5+ years of experience designing and developing user-centered digital products from initial concept to final, polished deliverable.",
		Experience: []Experience{
			{
				ID:        "exp1",
				JobTitle:  "Senior Software Engineer",
				Company:   "Tech Solutions Inc.",
				StartDate: "Jan 2020",
				EndDate:   "Present",
				Description: "- Lead the development of a new microservices-based architecture, improving system scalability by 40%.\n" +
					"- Mentor junior engineers, fostering a culture of technical excellence and continuous learning.\n" +
					"- Collaborate with product managers to define feature specifications and deliver high-quality software on time.",
			},
		},
		Education: []Education{
			{ID: "edu1", Institution: "State University", Degree: "B.S. in Computer Science", StartDate: "2012", EndDate: "2016"},
		},
		Skills: []Skill{
			{ID: "skill1", Name: "React"},
			{ID: "skill2", Name: "Node.js"},
			{ID: "skill3", Name: "TypeScript"},
			{ID: "skill4", Name: "Docker"},
			{ID: "skill5", Name: "AWS"},
		},
		Font: FontPoppins,
	}
}
