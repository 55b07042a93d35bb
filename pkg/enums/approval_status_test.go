package enums

import "testing"

func TestParseApprovalStatus(t *testing.T) {
	status, err := ParseApprovalStatus("approved")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != ApprovalStatusApproved {
		t.Fatalf("expected approved, got %s", status)
	}

	if _, err := ParseApprovalStatus("rejected"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestApprovalStatusTerminality(t *testing.T) {
	if ApprovalStatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	if !ApprovalStatusApproved.IsTerminal() || !ApprovalStatusDeclined.IsTerminal() {
		t.Fatal("approved and declined are terminal")
	}
}
