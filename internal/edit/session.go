// Package edit owns the edit-cycle lifecycle: one source image and one
// instruction go out to the image-editing model, exactly one call in flight
// per session, and the observable state walks idle -> busy -> success/failed.
package edit

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/h4xlabs/h4x-edit/internal/dataurl"
)

// State is the observable session state.
type State string

const (
	StateIdle    State = "idle"
	StateBusy    State = "busy"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// ValidationMessage is shown when generate is attempted without a source
// image or with an empty instruction.
const ValidationMessage = "Please upload an image and provide a modification prompt."

// FallbackErrorMessage is stored when a failed edit carries no message of its own.
const FallbackErrorMessage = "An unknown error occurred while communicating with the AI."

// ErrValidation rejects a generate attempt before any outbound call is made.
var ErrValidation = errors.New(ValidationMessage)

// ErrBusy rejects a second generate while one is already in flight.
var ErrBusy = errors.New("an edit is already in progress")

// Result is the outcome of one image-editing call.
type Result struct {
	// Data is the raw bytes of the edited image.
	Data []byte
	// MIMEType is the output format reported by the service.
	MIMEType string
}

// ImageEditor is the outbound collaborator that performs the actual edit.
// Implemented by the Gemini client; stubbed in tests.
type ImageEditor interface {
	EditImage(ctx context.Context, imageData []byte, imageMIMEType string, instruction string) (*Result, error)
}

// Snapshot is an immutable view of a session for the polling endpoint.
type Snapshot struct {
	ID         string
	State      State
	ResultURL  string // data URL, set only in StateSuccess
	ErrMessage string // set only in StateFailed
	HasSource  bool
	SourceMIME string
}

// Session holds one user's edit cycle. All fields behind mu; the only
// suspension point is the outbound call, which runs on its own goroutine
// and re-enters through settle.
type Session struct {
	mu     sync.Mutex
	id     string
	source *dataurl.Payload
	state  State
	result string // data URL of the edited image
	errMsg string

	// seq identifies the current request generation. Bumped on every
	// generate and on every source replacement; a completing call whose
	// seq no longer matches is stale and its response is dropped.
	seq uint64
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetSource replaces the session's source image. Any prior result or error
// is cleared immediately and the session returns to idle. An in-flight call
// is not canceled; its response will be discarded on arrival.
func (s *Session) SetSource(p *dataurl.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.source = p
	s.result = ""
	s.errMsg = ""
	s.state = StateIdle
	s.seq++

	log.Debug().
		Str("session", s.id).
		Str("mime", p.MIMEType).
		Uint64("seq", s.seq).
		Msg("Source image replaced")
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		State:      s.state,
		ResultURL:  s.result,
		ErrMessage: s.errMsg,
	}
	if s.source != nil {
		snap.HasSource = true
		snap.SourceMIME = s.source.MIMEType
	}
	return snap
}

// ResultBytes decodes the stored result for the download surface. Only
// meaningful in StateSuccess.
func (s *Session) ResultBytes() ([]byte, error) {
	s.mu.Lock()
	result := s.result
	state := s.state
	s.mu.Unlock()

	if state != StateSuccess || result == "" {
		return nil, errors.New("no result available")
	}
	p, err := dataurl.Parse(result)
	if err != nil {
		return nil, err
	}
	return p.Decode()
}

// settle records the outcome of the call identified by seq. A response for a
// superseded request (new generate or new source since it started) is dropped.
func (s *Session) settle(seq uint64, resultURL string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		log.Warn().
			Str("session", s.id).
			Uint64("stale_seq", seq).
			Uint64("current_seq", s.seq).
			Msg("Discarding stale edit response")
		return
	}

	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = FallbackErrorMessage
		}
		s.state = StateFailed
		s.errMsg = msg
		log.Error().Str("session", s.id).Str("error", msg).Msg("Edit failed")
		return
	}

	s.state = StateSuccess
	s.result = resultURL
	log.Info().Str("session", s.id).Int("result_chars", len(resultURL)).Msg("Edit complete")
}

// Manager creates and looks up sessions and runs their outbound calls.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	editor   ImageEditor
}

// NewManager returns a Manager that dispatches edits to the given editor.
func NewManager(editor ImageEditor) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		editor:   editor,
	}
}

// Create registers a new idle session with a random ID.
func (m *Manager) Create() *Session {
	s := &Session{
		id:    uuid.NewString(),
		state: StateIdle,
	}
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	log.Debug().Str("session", s.id).Msg("Session created")
	return s
}

// Get returns the session with the given ID, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Generate starts one edit cycle. Preconditions: a source image is set and
// the instruction is non-empty; otherwise ErrValidation and no outbound call.
// A generate while one is in flight returns ErrBusy. On success the returned
// request ID identifies the cycle; the call itself completes asynchronously.
func (m *Manager) Generate(ctx context.Context, s *Session, instruction string) (uint64, error) {
	s.mu.Lock()

	if s.state == StateBusy {
		s.mu.Unlock()
		return 0, ErrBusy
	}
	if s.source == nil || strings.TrimSpace(instruction) == "" {
		s.mu.Unlock()
		return 0, ErrValidation
	}

	// Entering busy clears any previous outcome.
	s.result = ""
	s.errMsg = ""
	s.state = StateBusy
	s.seq++
	seq := s.seq
	source := s.source
	s.mu.Unlock()

	log.Info().
		Str("session", s.id).
		Uint64("seq", seq).
		Str("mime", source.MIMEType).
		Int("instruction_chars", len(instruction)).
		Msg("Starting edit")

	go m.run(ctx, s, source, instruction, seq)
	return seq, nil
}

func (m *Manager) run(ctx context.Context, s *Session, source *dataurl.Payload, instruction string, seq uint64) {
	raw, err := source.Decode()
	if err != nil {
		s.settle(seq, "", err)
		return
	}

	res, err := m.editor.EditImage(ctx, raw, source.MIMEType, instruction)
	if err != nil {
		s.settle(seq, "", err)
		return
	}

	// The displayable string keeps the source MIME type; the service's
	// reported output type is informational only.
	encoded := base64.StdEncoding.EncodeToString(res.Data)
	s.settle(seq, dataurl.Encode(source.MIMEType, encoded), nil)
}
