package content

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Tom   Holland!!", "tom-holland"},
		{"  --Zoë--  ", "zoe"},
		{"Beyoncé Knowles-Carter", "beyonce-knowles-carter"},
		{"Spider-Man: No Way Home (2021)", "spider-man-no-way-home-2021"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
