package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{ErrProjectNotFound, "not_found"},
		{fmt.Errorf("failed to load invoice 7: %w", ErrInvoiceNotFound), "not_found"},
		{ErrEmptyCancellationReason, "validation"},
		{ErrEntryAlreadyAttached, "conflict"},
		{fmt.Errorf("add entries: %w", ErrInvoiceLocked), "conflict"},
		{ErrDeleteInvoiced, "integrity"},
		{errors.New("disk I/O error"), ""},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.expected {
			t.Errorf("KindOf(%v) = %q; want %q", tt.err, got, tt.expected)
		}
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("entry 3: %w", ErrEntryAlreadyAttached)
	if got := CodeOf(err); got != "entry_already_attached" {
		t.Errorf("CodeOf = %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q; want empty", got)
	}
}

func TestValidateDate(t *testing.T) {
	if err := ValidateDate("2024-02-29"); err != nil {
		t.Errorf("leap day rejected: %v", err)
	}
	for _, bad := range []string{"2023-02-29", "05.01.2024", "", "2024-1-5"} {
		if err := ValidateDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ValidateDate(%q) = %v; want ErrInvalidDate", bad, err)
		}
	}
}

func TestProjectValidate(t *testing.T) {
	p := &Project{Name: "Website"}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.Status != ProjectActive {
		t.Errorf("default status = %q; want active", p.Status)
	}

	p = &Project{Name: "  "}
	if err := p.Validate(); !errors.Is(err, ErrMissingField) {
		t.Errorf("blank name: err = %v", err)
	}

	p = &Project{Name: "x", Status: "archived"}
	if err := p.Validate(); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bad status: err = %v", err)
	}
}
