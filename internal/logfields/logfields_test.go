package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Builder", KeyBuilder, "Pdflatex", Builder("Pdflatex")},
		{"Status", KeyStatus, "ready", Status("ready")},
		{"Outfile", KeyOutfile, "/tmp/out.pdf", Outfile("/tmp/out.pdf")},
		{"Target", KeyTarget, ".html", Target(".html")},
		{"Exec", KeyExec, "pdflatex", Exec("pdflatex")},
		{"Command", KeyCommand, "cp a b", Command([]string{"cp", "a", "b"})},
		{"Document", KeyDocument, "main.dm", Document("main.dm")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Root", KeyRoot, "/src", Root("/src")},
		{"InExt", KeyInExt, ".tex", InExt(".tex")},
		{"OutExt", KeyOutExt, ".pdf", OutExt(".pdf")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric & float helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Priority(5); v.Key != KeyPriority {
		t.Fatalf("Priority key mismatch: %s", v.Key)
	}
	if v := ExitCode(2); v.Key != KeyExitCode || v.Value.Int64() != 2 {
		t.Fatalf("ExitCode mismatch: %v", v)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errors.New("err-test"))
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}
