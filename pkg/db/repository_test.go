package db

import (
	"testing"
)

func TestEncodeBody(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{"nil body", nil, "{}"},
		{"empty body", map[string]any{}, "{}"},
		{"fields", map[string]any{"title": "a", "n": 1}, `{"n":1,"title":"a"}`},
	}
	for _, tt := range tests {
		got, err := encodeBody(tt.body)
		if err != nil {
			t.Fatalf("db:repository_test - %s: unexpected error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("db:repository_test - %s: encodeBody = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestEncodeBody_Unsupported(t *testing.T) {
	_, err := encodeBody(map[string]any{"fn": func() {}})
	if err == nil {
		t.Fatal("db:repository_test - expected error for unencodable body")
	}
}
