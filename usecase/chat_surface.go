package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/utils/log"
)

var (
	ErrEmptyInput  = errors.New("message is empty")
	ErrBusy        = errors.New("a reply is still pending")
	ErrUnavailable = errors.New("phase is not available")
)

type SurfaceState string

const (
	StateLoading SurfaceState = "loading"
	StateDenied  SurfaceState = "denied"
	StateIdle    SurfaceState = "idle"
	StateSending SurfaceState = "sending"
)

// View is everything a renderer needs to draw a chat surface. Revision grows
// with every state change so asynchronous renderers can drop stale views.
type View struct {
	Revision     uint64           `json:"revision"`
	Phase        string           `json:"phase"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Placeholder  string           `json:"placeholder"`
	State        SurfaceState     `json:"state"`
	Messages     []domain.Message `json:"messages"`
	ShowInput    bool             `json:"showInput"`
	InputEnabled bool             `json:"inputEnabled"`
	ClearInput   bool             `json:"clearInput,omitempty"`
	Notice       string           `json:"notice,omitempty"`
}

// Renderer draws views of a chat surface.
type Renderer interface {
	Render(view View)
}

type RendererFunc func(view View)

func (f RendererFunc) Render(view View) { f(view) }

// ChatSurface runs the chat loop of one phase for one user: it gates the
// phase, accepts input, and appends exactly one assistant message per
// accepted user message. At most one round trip is in flight at a time.
type ChatSurface struct {
	phase        domain.PhaseConfig
	userID       string
	gate         domain.EntitlementGate
	assistant    domain.Assistant
	renderer     Renderer
	conversation *Conversation

	mu       sync.Mutex
	state    SurfaceState
	revision uint64
	mounted  bool

	// renderMu keeps renders in the same order as the transitions producing them.
	renderMu sync.Mutex
	inFlight sync.WaitGroup
}

func NewChatSurface(
	phase domain.PhaseConfig,
	userID string,
	gate domain.EntitlementGate,
	assistant domain.Assistant,
	renderer Renderer,
) *ChatSurface {
	return &ChatSurface{
		phase:        phase,
		userID:       userID,
		gate:         gate,
		assistant:    assistant,
		renderer:     renderer,
		conversation: NewConversation(phase.Seed()),
		state:        StateLoading,
	}
}

// Mount renders the loading state, asks the entitlement gate and settles
// into idle or denied. A failing gate counts as a denial.
func (s *ChatSurface) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.transitionLocked(StateLoading)

	ctx = log.ContextWithPhase(log.ContextWithUser(ctx, s.userID), s.phase.ID.String())
	allowed, err := s.gate.CheckEntitlement(ctx, s.userID, s.phase.ID)
	if err != nil {
		log.WithCtx(ctx).Warn("entitlement check failed, denying phase", zap.Error(err))
		allowed = false
	}

	s.mu.Lock()
	if allowed {
		s.transitionLocked(StateIdle)
	} else {
		s.transitionLocked(StateDenied)
	}
}

// Submit dispatches input as the next user message. Blank input, input while
// a reply is pending and input before the phase is allowed are rejected
// without touching the conversation.
func (s *ChatSurface) Submit(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	switch s.state {
	case StateSending:
		s.mu.Unlock()
		return ErrBusy
	case StateLoading, StateDenied:
		s.mu.Unlock()
		return ErrUnavailable
	case StateIdle:
	}

	s.conversation.Append(domain.Message{Role: domain.UserRole, Content: input})
	history := s.conversation.Snapshot()
	s.inFlight.Add(1)
	s.transitionLocked(StateSending)

	go s.roundTrip(ctx, history)
	return nil
}

func (s *ChatSurface) roundTrip(ctx context.Context, history []domain.Message) {
	defer s.inFlight.Done()

	reply := s.assistant.Send(ctx, s.phase.SystemPrompt, history)
	reply.Role = domain.AssistantRole

	s.mu.Lock()
	s.conversation.Append(reply)
	s.transitionLocked(StateIdle)
}

// transitionLocked moves to state and renders the resulting view. It must be
// called with s.mu held and releases it before rendering.
func (s *ChatSurface) transitionLocked(state SurfaceState) {
	previous := s.state
	s.state = state
	s.revision++
	view := s.viewLocked()
	view.ClearInput = state == StateSending && previous == StateIdle

	s.renderMu.Lock()
	s.mu.Unlock()
	defer s.renderMu.Unlock()
	s.renderer.Render(view)
}

func (s *ChatSurface) viewLocked() View {
	view := View{
		Revision:    s.revision,
		Phase:       s.phase.ID.String(),
		Title:       s.phase.Title,
		Description: s.phase.Description,
		Placeholder: s.phase.Placeholder,
		State:       s.state,
	}

	switch s.state {
	case StateLoading:
		view.Notice = "Loading…"
	case StateDenied:
		view.Notice = s.phase.DenialNotice()
	case StateIdle:
		view.Messages = s.conversation.Snapshot()
		view.ShowInput = true
		view.InputEnabled = true
	case StateSending:
		view.Messages = s.conversation.Snapshot()
		view.ShowInput = true
	}
	return view
}

// View returns the current view without changing state.
func (s *ChatSurface) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *ChatSurface) State() SurfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InFlight reports whether a round trip is pending.
func (s *ChatSurface) InFlight() bool {
	return s.State() == StateSending
}

// Messages returns the conversation in insertion order.
func (s *ChatSurface) Messages() []domain.Message {
	return s.conversation.Snapshot()
}

// Wait blocks until no round trip is in flight.
func (s *ChatSurface) Wait() {
	s.inFlight.Wait()
}
