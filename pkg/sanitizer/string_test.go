package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Maria Souza  ",
			want:  "Maria Souza",
		},
		{
			name:  "multiple spaces between words",
			input: "Maria    Souza",
			want:  "Maria Souza",
		},
		{
			name:  "tabs and newlines",
			input: "Maria\t\nSouza",
			want:  "Maria Souza",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "preserve accents and symbols",
			input: " Corte & Barba ™ ",
			want:  "Corte & Barba ™",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeServiceType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Consulta  ", "consulta"},
		{"CORTE   MASCULINO", "corte masculino"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeServiceType(tt.input); got != tt.want {
			t.Errorf("NormalizeServiceType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ana@Example.COM "); got != "ana@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}
