package match

import "testing"

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		t    Type
		want bool
	}{
		{Filename, true},
		{Content, true},
		{"", false},
		{"semantic", false},
		{"FILENAME", false},
	}
	for _, tt := range tests {
		if got := tt.t.IsValid(); got != tt.want {
			t.Errorf("Type(%q).IsValid() = %v, want %v", tt.t, got, tt.want)
		}
	}
}
