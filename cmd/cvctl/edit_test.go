package main

import "testing"

func TestParseAssignments(t *testing.T) {
	fields, err := parseAssignments([]string{"personal.fullName=Ada Lovelace", "summary=", "a=b=c"})
	if err != nil {
		t.Fatalf("parseAssignments: %v", err)
	}
	if fields["personal.fullName"] != "Ada Lovelace" || fields["summary"] != "" || fields["a"] != "b=c" {
		t.Fatalf("unexpected fields: %v", fields)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseAssignments([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
