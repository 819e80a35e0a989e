package errors

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateFolder(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"existing dir", dir, false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"missing", filepath.Join(dir, "nope"), true},
		{"regular file", file, true},
		{"control char", "foo\x01bar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFolder("source", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFolder(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidFolder) {
				t.Errorf("ValidateFolder(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateDimensions(t *testing.T) {
	tests := []struct {
		name                    string
		width, height, rows, cs int
		wantErr                 bool
	}{
		{"full hd", 1920, 1080, 3, 5, false},
		{"single cell", 100, 100, 1, 1, false},
		{"zero width", 0, 100, 1, 1, true},
		{"negative height", 100, -1, 1, 1, true},
		{"zero rows", 100, 100, 0, 1, true},
		{"zero cols", 100, 100, 1, 0, true},
		{"too many rows", 10, 10, 11, 1, true},
		{"too large", 70000, 100, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDimensions(tt.width, tt.height, tt.rows, tt.cs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDimensions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidDimensions) {
				t.Errorf("wrong error code: %v", err)
			}
		})
	}
}

func TestValidateInterval(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
		wantErr  bool
	}{
		{"range", 5, 30, false},
		{"equal", 10, 10, false},
		{"zero min", 0, 10, true},
		{"inverted", 30, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInterval(tt.min, tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInterval(%d, %d) error = %v, wantErr %v", tt.min, tt.max, err, tt.wantErr)
			}
		})
	}
}
