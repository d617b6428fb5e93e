package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReasonOf(t *testing.T) {
	err := Wrap(errors.New("dial tcp: timeout"), PublishFailed, "upload failed")
	if got := ReasonOf(err); got != PublishFailed {
		t.Fatalf("ReasonOf = %q, want %q", got, PublishFailed)
	}
	if !Is(err, PublishFailed) {
		t.Fatal("expected Is(err, PublishFailed)")
	}
	if Message(err) != "upload failed" {
		t.Errorf("Message = %q, want %q", Message(err), "upload failed")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := New(ArtifactNotFound, "file not found")
	second := Wrap(fmt.Errorf("export: %w", first), PublishFailed, "other")
	if got := ReasonOf(second); got != ArtifactNotFound {
		t.Fatalf("ReasonOf = %q, want reason preserved as %q", got, ArtifactNotFound)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, InternalError, "x") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	if ReasonOf(nil) != "" {
		t.Fatal("ReasonOf(nil) should be empty")
	}
}

func TestUnclassifiedErrorsAreInternal(t *testing.T) {
	err := errors.New("secret connection string leaked")
	if ReasonOf(err) != InternalError {
		t.Fatalf("expected InternalError, got %q", ReasonOf(err))
	}
	if Message(err) != "internal error" {
		t.Fatalf("unclassified error message leaked: %q", Message(err))
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Reason: MissingCode}, "missing_code"},
		{&Error{Reason: MissingCode, Detail: "no code"}, "missing_code: no code"},
		{&Error{Reason: InternalError, Err: errors.New("boom")}, "internal_error: boom"},
		{&Error{Reason: PublishFailed, Detail: "d", Err: errors.New("e")}, "publish_failed: d: e"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
