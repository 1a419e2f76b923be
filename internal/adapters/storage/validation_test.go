package storage

import (
	"strings"
	"testing"
)

func TestValidateContentType(t *testing.T) {
	if err := ValidateContentType("application/pdf; charset=binary"); err != nil {
		t.Fatalf("expected pdf to be allowed: %v", err)
	}
	if err := ValidateContentType("image/png"); err == nil {
		t.Fatalf("expected png to be rejected")
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := ValidateFileSize(0); err == nil {
		t.Fatalf("expected empty file to be rejected")
	}
	if err := ValidateFileSize(MaxFileSize + 1); err == nil {
		t.Fatalf("expected oversized file to be rejected")
	}
	if err := ValidateFileSize(1024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFileKeyIsUniqueUnderFolder(t *testing.T) {
	a := FileKey("reports/abc", "inspection.pdf")
	b := FileKey("reports/abc", "inspection.pdf")
	if a == b {
		t.Fatalf("expected distinct keys, got %q twice", a)
	}
	if !strings.HasPrefix(a, "reports/abc/inspection_") || !strings.HasSuffix(a, ".pdf") {
		t.Fatalf("unexpected key %q", a)
	}
}
