package transfer

import "testing"

func TestHashMatches(t *testing.T) {
	actual := ContentHash([]byte("hello"))

	tests := []struct {
		name     string
		declared string
		want     bool
	}{
		{"full", actual, true},
		{"prefix", actual[:8], true},
		{"algorithm prefix", "sha256:" + actual, true},
		{"uppercase with spaces", "  SHA256:" + actual[:16] + " ", true},
		{"empty", "", false},
		{"algorithm only", "sha256:", false},
		{"whitespace", " \t", false},
		{"different", "00" + actual[2:], false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hashMatches(actual, tt.declared); got != tt.want {
				t.Errorf("hashMatches(%q) = %v, want %v", tt.declared, got, tt.want)
			}
		})
	}
}
