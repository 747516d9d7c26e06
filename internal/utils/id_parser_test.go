package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hourbook/hourbook/internal/types"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"#7", 7, false},
		{" 3 ", 3, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, types.ErrValidation) {
				t.Errorf("ParseID(%q) error %v is not a validation error", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseIDList(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []int64
		wantErr error
	}{
		{"single", []string{"3"}, []int64{3}, nil},
		{"separate args", []string{"3", "1"}, []int64{3, 1}, nil},
		{"comma list", []string{"5,7, 9"}, []int64{5, 7, 9}, nil},
		{"range", []string{"10-12"}, []int64{10, 11, 12}, nil},
		{"mixed", []string{"1,4-5", "#9"}, []int64{1, 4, 5, 9}, nil},
		{"duplicates kept", []string{"2,2"}, []int64{2, 2}, nil},
		{"empty", []string{" , "}, nil, types.ErrEmptyEntrySet},
		{"no args", nil, nil, types.ErrEmptyEntrySet},
		{"reversed range", []string{"5-3"}, nil, types.ErrValidation},
		{"bad token", []string{"1,x"}, nil, types.ErrValidation},
		{"huge range", []string{"1-20000"}, nil, types.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDList(tt.args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseIDList(%q) error = %v, want %v", tt.args, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIDList(%q) failed: %v", tt.args, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseIDList(%q) mismatch (-want +got):\n%s", tt.args, diff)
			}
		})
	}
}

func TestCanonicalizePath(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0o750); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	want, err := filepath.EvalSymlinks(real)
	if err != nil {
		t.Fatal(err)
	}
	if got := CanonicalizePath(link); got != want {
		t.Errorf("CanonicalizePath(%q) = %q, want %q", link, got, want)
	}

	missing := filepath.Join(dir, "missing", "..", "gone")
	if got := CanonicalizePath(missing); got != filepath.Join(dir, "gone") {
		t.Errorf("CanonicalizePath(%q) = %q", missing, got)
	}

	home, err := os.UserHomeDir()
	if err == nil {
		if got := CanonicalizePath("~/x-hourbook-test"); !filepath.IsAbs(got) || filepath.Base(got) != "x-hourbook-test" {
			t.Errorf("CanonicalizePath(~/...) = %q (home %s)", got, home)
		}
	}
}
