package app

import "testing"

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"shop.example.com", "*.example.com", "localhost:*"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://shop.example.com", true},
		{"https://api.example.com", true},
		{"http://localhost:3000", true},
		{"http://localhost:8080", true},
		{"https://evil.com", false},
		{"https://example.com.evil.com", false},
		{"https://shopexample.com", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := originAllowed(patterns, tt.origin); got != tt.want {
			t.Errorf("originAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
