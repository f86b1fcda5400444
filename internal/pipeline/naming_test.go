package pipeline

import "testing"

func TestIdentifier(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"https://the-internet.herokuapp.com/checkboxes", "Checkboxes"},
		{"https://the-internet.herokuapp.com/forgot-password", "ForgotPassword"},
		{"https://example.com/dynamic_loading/", "DynamicLoading"},
		{"https://example.com/a/b_c-d", "BCD"},
		{"https://example.com/login?next=/home#top", "Login"},
		{"https://example.com/docs/index.html", "IndexHtml"},
		{"https://example.com/404", "Page404"},
		{"https://example.com", DefaultIdentifier},
		{"https://example.com/", DefaultIdentifier},
		{"https://example.com/a//", DefaultIdentifier},
		{"https://example.com/---", DefaultIdentifier},
		{"/relative/user-settings", "UserSettings"},
		{"", DefaultIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := Identifier(tt.target); got != tt.want {
				t.Errorf("Identifier(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}
