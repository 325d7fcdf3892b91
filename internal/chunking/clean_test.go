package chunking

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"collapses blank runs", "First.\n\n\n\nSecond.", "First.\n\nSecond."},
		{"keeps paragraph break", "First.\n\nSecond.", "First.\n\nSecond."},
		{"keeps single newline", "line one\nline two", "line one\nline two"},
		{"collapses spaces", "the  court    held", "the court held"},
		{"trims lines", "  indented line  \n\ttabbed\t", "indented line\ntabbed"},
		{"whitespace-only lines become blank", "a\n   \n \n\nb", "a\n\nb"},
		{"windows newlines", "a\r\n\r\n\r\nb", "a\n\nb"},
		{"leading and trailing blank lines", "\n\n\n  Title \n\n\n", "Title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	input := "  Section 1.  Definitions \n\n\n\n  (a)   Agreement means   this document.\n\n"
	once := Clean(input)
	if twice := Clean(once); twice != once {
		t.Errorf("Clean not idempotent: %q then %q", once, twice)
	}
}
