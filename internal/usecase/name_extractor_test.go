package usecase

import "testing"

func TestExtractName(t *testing.T) {
	tests := []struct {
		name    string
		message string
		first   bool
		want    string
	}{
		{"my name is, first", "my name is Ada", true, "Ada"},
		{"my name is, later", "my name is Ada", false, "Ada"},
		{"my name is, shouting", "MY NAME IS Ada", false, "Ada"},
		{"my name is, lowercase name kept", "My Name Is ada", false, "ada"},
		{"trailing punctuation", "hey, my name is Tunde!", false, "Tunde"},
		{"i am", "Hi, I am Kemi and I'm bored", false, "Kemi"},
		{"i'm straight apostrophe", "I'm Tunde", true, "Tunde"},
		{"i’m curly apostrophe", "I’m Tunde", false, "Tunde"},
		{"call me", "just call me Bolu.", false, "Bolu"},
		{"name's", "the name's Obi, wetin?", false, "Obi"},
		{"name’s curly apostrophe", "Name’s Ngozi", false, "Ngozi"},
		{"x is my name", "Zainab is my name", false, "Zainab"},
		{"capitalized token", "Chidi wants pizza", true, "Chidi"},
		{"capitalized token skips all caps", "OK so Femi here", true, "Femi"},
		{"greeting false positive", "Hello there", true, "Hello"},
		{"first word fallback", "ok whatever", true, "ok"},
		{"single letters ignored", "a b c", true, ""},
		{"non-first no match", "what is the weather like", false, ""},
		{"non-first capitalized ignored", "Paris is nice", false, ""},
		{"empty", "", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractName(tt.message, tt.first); got != tt.want {
				t.Errorf("ExtractName(%q, %v) = %q, want %q", tt.message, tt.first, got, tt.want)
			}
		})
	}
}

func TestExtractName_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := ExtractName("Chidi wants pizza", true); got != "Chidi" {
			t.Fatalf("run %d: got %q", i, got)
		}
	}
}
