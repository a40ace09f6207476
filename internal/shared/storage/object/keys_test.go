package object

import (
	"strings"
	"testing"
)

func TestOwnerPrefix(t *testing.T) {
	got := OwnerPrefix("google:12345")
	if got != OwnerPrefix("google:12345") {
		t.Fatalf("expected stable prefix")
	}
	if len(got) != 32 || strings.Trim(got, "0123456789abcdef") != "" {
		t.Fatalf("unexpected prefix %q", got)
	}
	if got == OwnerPrefix("google:12346") {
		t.Fatalf("different owners share a prefix")
	}
}

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "photo.png", want: "photo.png"},
		{in: " a/b\\c d.jpg ", want: "a_b_c_d.jpg"},
		{in: "foto-perfil_ñ.webp", want: "foto-perfil_.webp"},
		{in: "../secret", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "***", wantErr: true},
	}

	for _, tt := range tests {
		got, err := CleanFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("CleanFileName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("CleanFileName(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}

	long, err := CleanFileName(strings.Repeat("a", 100) + ".png")
	if err != nil || len(long) != maxNameLength || !strings.HasSuffix(long, ".png") {
		t.Fatalf("long name = %q, %v", long, err)
	}
}

func TestNewKeyUsesSniffedExtension(t *testing.T) {
	key, err := NewKey("guest:a", "me.jpeg", "image/png")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	if !strings.HasPrefix(key, OwnerPrefix("guest:a")+"/") || !strings.HasSuffix(key, "_me.png") {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := NewKey("guest:a", "..", "image/png"); err == nil {
		t.Fatalf("expected error for traversal name")
	}
}
