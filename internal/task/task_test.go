package task

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"boleto.issue", TypeBoletoIssue, false},
		{"message.send", TypeMessageSend, false},
		{"", "", true},
		{"boleto.cancel", "", true},
		{"BOLETO.ISSUE", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				var typeErr *InvalidTypeError
				if !errors.As(err, &typeErr) {
					t.Fatalf("ParseType(%q) error = %v, want *InvalidTypeError", tt.input, err)
				}
				if typeErr.Type != tt.input {
					t.Errorf("error carries type %q, want %q", typeErr.Type, tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseType(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := &PersistenceError{Op: "claim_pending", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is() does not reach the wrapped cause")
	}
	want := "persistence error in claim_pending: connection reset"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorStrings(t *testing.T) {
	if got := (&InvalidTypeError{Type: "export.csv"}).Error(); got != `invalid task type "export.csv"` {
		t.Errorf("InvalidTypeError = %q", got)
	}
	if got := (&ProcessingError{Reason: "boleto not found"}).Error(); got != "processing error: boleto not found" {
		t.Errorf("ProcessingError = %q", got)
	}
}
