package edit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/h4xlabs/h4x-edit/internal/dataurl"
)

// stubEditor is a controllable ImageEditor. If release is non-nil, EditImage
// blocks until the channel is closed.
type stubEditor struct {
	calls   atomic.Int64
	release chan struct{}
	result  *Result
	err     error

	gotMIME        string
	gotInstruction string
}

func (e *stubEditor) EditImage(ctx context.Context, imageData []byte, imageMIMEType string, instruction string) (*Result, error) {
	e.calls.Add(1)
	e.gotMIME = imageMIMEType
	e.gotInstruction = instruction
	if e.release != nil {
		<-e.release
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func waitForSettled(t *testing.T, s *Session) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.Snapshot()
		if snap.State != StateBusy {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("session did not settle in time")
	return Snapshot{}
}

func sourcePNG() *dataurl.Payload {
	return dataurl.FromBytes([]byte("fake png bytes"), "image/png")
}

func TestGenerateWithoutSource(t *testing.T) {
	editor := &stubEditor{}
	m := NewManager(editor)
	s := m.Create()

	_, err := m.Generate(context.Background(), s, "make it neon")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if err.Error() != ValidationMessage {
		t.Errorf("message = %q, want %q", err.Error(), ValidationMessage)
	}
	if got := editor.calls.Load(); got != 0 {
		t.Errorf("editor called %d times, want 0", got)
	}
	if snap := s.Snapshot(); snap.State != StateIdle {
		t.Errorf("state = %q, want idle", snap.State)
	}
}

func TestGenerateEmptyInstruction(t *testing.T) {
	editor := &stubEditor{}
	m := NewManager(editor)
	s := m.Create()
	s.SetSource(sourcePNG())

	for _, instruction := range []string{"", "   \t\n"} {
		_, err := m.Generate(context.Background(), s, instruction)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("Generate(%q) error = %v, want ErrValidation", instruction, err)
		}
	}
	if got := editor.calls.Load(); got != 0 {
		t.Errorf("editor called %d times, want 0", got)
	}
}

func TestGenerateSuccess(t *testing.T) {
	editor := &stubEditor{
		result: &Result{Data: []byte("edited bytes"), MIMEType: "image/png"},
	}
	m := NewManager(editor)
	s := m.Create()
	s.SetSource(dataurl.FromBytes([]byte("original"), "image/jpeg"))

	if _, err := m.Generate(context.Background(), s, "make it neon"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	snap := waitForSettled(t, s)
	if snap.State != StateSuccess {
		t.Fatalf("state = %q, want success (err: %q)", snap.State, snap.ErrMessage)
	}

	// Display string keeps the source MIME type.
	want := dataurl.Encode("image/jpeg", dataurl.FromBytes([]byte("edited bytes"), "image/jpeg").Data)
	if snap.ResultURL != want {
		t.Errorf("result = %q, want %q", snap.ResultURL, want)
	}
	if editor.gotMIME != "image/jpeg" {
		t.Errorf("editor received MIME %q, want image/jpeg", editor.gotMIME)
	}
	if editor.gotInstruction != "make it neon" {
		t.Errorf("editor received instruction %q", editor.gotInstruction)
	}

	raw, err := s.ResultBytes()
	if err != nil {
		t.Fatalf("ResultBytes failed: %v", err)
	}
	if string(raw) != "edited bytes" {
		t.Errorf("ResultBytes = %q, want %q", raw, "edited bytes")
	}
}

func TestGenerateFailure(t *testing.T) {
	editor := &stubEditor{err: errors.New("model melted")}
	m := NewManager(editor)
	s := m.Create()
	s.SetSource(sourcePNG())

	if _, err := m.Generate(context.Background(), s, "make it neon"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	snap := waitForSettled(t, s)
	if snap.State != StateFailed {
		t.Fatalf("state = %q, want failed", snap.State)
	}
	if snap.ErrMessage != "model melted" {
		t.Errorf("error = %q, want %q", snap.ErrMessage, "model melted")
	}
	if snap.ResultURL != "" {
		t.Errorf("result should be empty on failure, got %q", snap.ResultURL)
	}

	// A subsequent valid submission clears the failed state and re-enters busy.
	editor.err = nil
	editor.result = &Result{Data: []byte("second try"), MIMEType: "image/png"}
	if _, err := m.Generate(context.Background(), s, "try again"); err != nil {
		t.Fatalf("resubmission rejected: %v", err)
	}
	snap = waitForSettled(t, s)
	if snap.State != StateSuccess {
		t.Fatalf("state after retry = %q, want success", snap.State)
	}
	if snap.ErrMessage != "" {
		t.Errorf("stale error message survived retry: %q", snap.ErrMessage)
	}
}

func TestGenerateFailureEmptyMessage(t *testing.T) {
	editor := &stubEditor{err: errors.New("")}
	m := NewManager(editor)
	s := m.Create()
	s.SetSource(sourcePNG())

	if _, err := m.Generate(context.Background(), s, "make it neon"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	snap := waitForSettled(t, s)
	if snap.ErrMessage != FallbackErrorMessage {
		t.Errorf("error = %q, want fallback message", snap.ErrMessage)
	}
}

func TestGenerateWhileBusy(t *testing.T) {
	editor := &stubEditor{
		release: make(chan struct{}),
		result:  &Result{Data: []byte("x"), MIMEType: "image/png"},
	}
	m := NewManager(editor)
	s := m.Create()
	s.SetSource(sourcePNG())

	if _, err := m.Generate(context.Background(), s, "first"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if snap := s.Snapshot(); snap.State != StateBusy {
		t.Fatalf("state = %q, want busy", snap.State)
	}

	_, err := m.Generate(context.Background(), s, "second")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("error = %v, want ErrBusy", err)
	}

	close(editor.release)
	waitForSettled(t, s)
}

func TestStaleResponseDiscardedAfterNewSource(t *testing.T) {
	editor := &stubEditor{
		release: make(chan struct{}),
		result:  &Result{Data: []byte("stale"), MIMEType: "image/png"},
	}
	m := NewManager(editor)
	s := m.Create()
	s.SetSource(sourcePNG())

	if _, err := m.Generate(context.Background(), s, "first"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// A new selection mid-busy clears state and supersedes the request.
	s.SetSource(dataurl.FromBytes([]byte("new source"), "image/webp"))
	if snap := s.Snapshot(); snap.State != StateIdle {
		t.Fatalf("state after new source = %q, want idle", snap.State)
	}

	close(editor.release)

	// The in-flight response must not overwrite the cleared state.
	time.Sleep(50 * time.Millisecond)
	snap := s.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("state = %q, want idle after stale response", snap.State)
	}
	if snap.ResultURL != "" {
		t.Errorf("stale result leaked into state: %q", snap.ResultURL)
	}
}

func TestSetSourceClearsResult(t *testing.T) {
	editor := &stubEditor{result: &Result{Data: []byte("edited"), MIMEType: "image/png"}}
	m := NewManager(editor)
	s := m.Create()
	s.SetSource(sourcePNG())

	if _, err := m.Generate(context.Background(), s, "make it neon"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if snap := waitForSettled(t, s); snap.State != StateSuccess {
		t.Fatalf("state = %q, want success", snap.State)
	}

	s.SetSource(sourcePNG())
	snap := s.Snapshot()
	if snap.State != StateIdle || snap.ResultURL != "" || snap.ErrMessage != "" {
		t.Errorf("new source did not clear state: %+v", snap)
	}
}

func TestManagerLookup(t *testing.T) {
	m := NewManager(&stubEditor{})
	s := m.Create()

	if got := m.Get(s.ID()); got != s {
		t.Error("Get did not return the created session")
	}
	if got := m.Get("nope"); got != nil {
		t.Error("Get for unknown ID should return nil")
	}
}
