package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotenv(t *testing.T) {
	content := `# Storage config
DATA_DIR=/tmp/roam-data

# Quoted values
SECRET="my-secret-value"
SINGLE='single-quoted'

# Spaces around =
SPACED_KEY = spaced_value
`

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	// Clear any existing values.
	os.Unsetenv("DATA_DIR")
	os.Unsetenv("SECRET")
	os.Unsetenv("SINGLE")
	os.Unsetenv("SPACED_KEY")

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key, want string
	}{
		{"DATA_DIR", "/tmp/roam-data"},
		{"SECRET", "my-secret-value"},
		{"SINGLE", "single-quoted"},
		{"SPACED_KEY", "spaced_value"},
	}

	for _, tt := range tests {
		got := os.Getenv(tt.key)
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadDotenvNoOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PRESET_KEY=from_file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PRESET_KEY", "from_env")

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("PRESET_KEY"); got != "from_env" {
		t.Errorf("PRESET_KEY = %q, want existing value preserved", got)
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}
