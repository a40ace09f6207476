package cvs

import (
	"errors"
	"testing"
)

func TestDefaultContentIsValid(t *testing.T) {
	if err := Validate(DefaultContent()); err != nil {
		t.Fatalf("sample content should validate: %v", err)
	}
}

func TestValidateReportsFieldErrors(t *testing.T) {
	c := DefaultContent()
	c.Personal.Email = "not-an-email"
	c.Personal.Website = "janedoe"
	c.Font = "comic-sans"
	c.Skills = append(c.Skills, Skill{ID: "skill1", Name: "Go"})

	err := Validate(c)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent in chain")
	}

	got := map[string]bool{}
	for _, f := range verr.Fields {
		got[f.Field] = true
	}
	for _, want := range []string{"personal.email", "personal.website", "font", "skills[5].id"} {
		if !got[want] {
			t.Fatalf("missing field error %q in %+v", want, verr.Fields)
		}
	}
}

func TestValidateAcceptsEmptyOptionalFields(t *testing.T) {
	c := Content{}
	Normalize(&c)
	if err := Validate(c); err != nil {
		t.Fatalf("empty content should validate: %v", err)
	}
	if c.Font != FontPoppins {
		t.Fatalf("expected default font, got %q", c.Font)
	}
}

func TestValidateField(t *testing.T) {
	tests := []struct {
		field   string
		value   string
		wantErr bool
	}{
		{field: "personal.email", value: "", wantErr: false},
		{field: "personal.email", value: "jane@example.com", wantErr: false},
		{field: "personal.email", value: "jane@", wantErr: true},
		{field: "personal.linkedin", value: "https://linkedin.com/in/jane", wantErr: false},
		{field: "personal.photoUrl", value: "picsum", wantErr: true},
		{field: "font", value: "inter", wantErr: false},
		{field: "font", value: "arial", wantErr: true},
		{field: "summary", value: "anything goes", wantErr: false},
	}

	for _, tt := range tests {
		fe := ValidateField(tt.field, tt.value)
		if (fe != nil) != tt.wantErr {
			t.Fatalf("ValidateField(%q, %q) = %+v, wantErr=%v", tt.field, tt.value, fe, tt.wantErr)
		}
	}
}

func TestDecodeContentFillsMissingIDs(t *testing.T) {
	raw := []byte(`{"personal":{"fullName":"A"},"experience":[{"jobTitle":"Dev"},{"id":"keep","jobTitle":"Ops"}]}`)
	c, err := DecodeContent(raw)
	if err != nil {
		t.Fatalf("DecodeContent: %v", err)
	}
	if c.Experience[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if c.Experience[1].ID != "keep" {
		t.Fatalf("existing id must be preserved, got %q", c.Experience[1].ID)
	}
	if c.Skills == nil || c.Education == nil {
		t.Fatalf("expected empty sequences instead of nil")
	}
}

func TestDecodeContentRejectsInvalidStoredData(t *testing.T) {
	if _, err := DecodeContent([]byte(`{"personal":{"email":"nope"}}`)); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
	if _, err := DecodeContent([]byte(`[1,2]`)); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent for wrong shape, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := DefaultContent()
	b := a.Clone()
	b.Skills[0].Name = "Vue"
	if a.Skills[0].Name != "React" {
		t.Fatalf("clone shares skills backing array")
	}
	if a.Equal(b) {
		t.Fatalf("expected contents to differ")
	}
	b.Skills[0].Name = "React"
	if !a.Equal(b) {
		t.Fatalf("expected contents to be equal")
	}
}
