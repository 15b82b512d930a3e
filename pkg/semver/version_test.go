package semver

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"1.0.0", false},
		{"2.3.4-beta.1", false},
		{"0.0.1+build.5", false},
		{"", true},
		{"1", true},
		{"1.2", true},
		{"v1.2.3", true},
		{"not-a-version", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("semver:version_test - Parse(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestIsMajorOnly(t *testing.T) {
	if !IsMajorOnly("3") {
		t.Error("semver:version_test - expected \"3\" to be major-only")
	}
	for _, r := range []string{"", "3.1", "^3", "x"} {
		if IsMajorOnly(r) {
			t.Errorf("semver:version_test - expected %q not to be major-only", r)
		}
	}
	if got := ExtractMajorFromRange("12"); got != 12 {
		t.Errorf("semver:version_test - ExtractMajorFromRange(12) = %d, want 12", got)
	}
	if got := ExtractMajorFromRange("^1"); got != -1 {
		t.Errorf("semver:version_test - ExtractMajorFromRange(^1) = %d, want -1", got)
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name    string
		version string
		rng     string
		want    bool
		wantErr bool
	}{
		{"empty range matches", "1.2.3", "", true, false},
		{"major only match", "2.5.0", "2", true, false},
		{"major only miss", "3.0.0", "2", false, false},
		{"major only prerelease", "2.0.0-rc.1", "2", true, false},
		{"caret match", "1.4.0", "^1.2", true, false},
		{"caret miss", "2.0.0", "^1.2", false, false},
		{"compound range", "2.1.0", ">=2.0.0 <3.0.0", true, false},
		{"tilde miss", "1.3.0", "~1.2.0", false, false},
		{"invalid version", "x", "^1", false, true},
		{"invalid range", "1.0.0", "not a range", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Satisfies(tt.version, tt.rng)
			if (err != nil) != tt.wantErr {
				t.Fatalf("semver:version_test - Satisfies(%q, %q) err = %v, wantErr %v", tt.version, tt.rng, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("semver:version_test - Satisfies(%q, %q) = %v, want %v", tt.version, tt.rng, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	c, err := Compare("1.10.0", "1.9.0")
	if err != nil {
		t.Fatalf("semver:version_test - unexpected error: %v", err)
	}
	if c != 1 {
		t.Errorf("semver:version_test - Compare = %d, want 1", c)
	}
	if _, err := Compare("bad", "1.0.0"); err == nil {
		t.Error("semver:version_test - expected error for invalid version")
	}
}
