package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/oklog/ulid/v2"

	"github.com/tbxark/draftagent/errors"
	"github.com/tbxark/draftagent/intent"
	"github.com/tbxark/draftagent/types"
)

const (
	DefaultMaxSteps = 16

	cancelMessage = "Drafting cancelled. Start a new session whenever you are ready."
)

// Controller runs the machine for one user turn at a time per session and persists
// the result. Turns of one session are serialized; distinct sessions run in parallel.
type Controller struct {
	machine  *Machine
	store    StateReadWriter
	intent   intent.Recognizer
	maxSteps int
	now      func() time.Time
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type ControllerOption func(*Controller)

func WithStateReadWriter(store StateReadWriter) ControllerOption {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

// WithIntentRecognizer enables cancel detection on every submitted message.
func WithIntentRecognizer(r intent.Recognizer) ControllerOption {
	return func(c *Controller) {
		c.intent = r
	}
}

// WithMaxSteps caps the steps one SubmitMessage call may run before it must suspend.
func WithMaxSteps(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewController(machine *Machine, opts ...ControllerOption) (*Controller, error) {
	if machine == nil {
		return nil, fmt.Errorf("machine is required")
	}
	c := &Controller{
		machine:  machine,
		store:    NewMemoryStateReadWriter(),
		maxSteps: DefaultMaxSteps,
		now:      time.Now,
		logger:   slog.Default(),
		locks:    map[string]*sessionLock{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Machine returns the state machine driven by the controller.
func (c *Controller) Machine() *Machine {
	return c.machine
}

// lock serializes work on one session id.
func (c *Controller) lock(id string) func() {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &sessionLock{}
		c.locks[id] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, id)
		}
		c.mu.Unlock()
	}
}

// NewSession creates and stores an empty session in AnalyzeRequest.
func (c *Controller) NewSession(ctx context.Context) (*types.DraftSession, error) {
	s := types.NewDraftSession(ulid.Make().String())
	s.CreatedAt = c.now()
	s.UpdatedAt = s.CreatedAt
	if err := c.store.Write(ctx, s); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("store session: %w", err))
	}
	c.logger.Debug("Session created", "session", s.ID)
	return s.Clone(), nil
}

// Open returns the session with id, creating it when it does not exist yet.
func (c *Controller) Open(ctx context.Context, id string) (*types.DraftSession, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewInvalidRequest("session id is required")
	}
	unlock := c.lock(id)
	defer unlock()
	s, ok, err := c.store.Read(ctx, id)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read session: %w", err))
	}
	if ok {
		return s, nil
	}
	s = types.NewDraftSession(id)
	s.CreatedAt = c.now()
	s.UpdatedAt = s.CreatedAt
	if err := c.store.Write(ctx, s); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("store session: %w", err))
	}
	return s.Clone(), nil
}

// Session returns a copy of the stored session.
func (c *Controller) Session(ctx context.Context, id string) (*types.DraftSession, error) {
	s, ok, err := c.store.Read(ctx, id)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read session: %w", err))
	}
	if !ok {
		return nil, errors.NewSessionNotFound(id)
	}
	return s, nil
}

// Abandon moves an open session to the terminal abandoned status.
func (c *Controller) Abandon(ctx context.Context, id string) (*types.DraftSession, error) {
	unlock := c.lock(id)
	defer unlock()
	s, err := c.openForTurn(ctx, id)
	if err != nil {
		return nil, err
	}
	s = s.Clone()
	s.Status = types.StatusAbandoned
	s.Inbox = nil
	s.UpdatedAt = c.now()
	if err := c.store.Write(ctx, s); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("store session: %w", err))
	}
	c.logger.Info("Session abandoned", "session", id)
	return s, nil
}

// SubmitMessage delivers one user message and runs the machine until it suspends or
// completes. An unknown id starts a new session. Any error leaves the stored session
// exactly as it was before the call.
func (c *Controller) SubmitMessage(ctx context.Context, id, text string) (*Reply, error) {
	ctx = callbacks.EnsureRunInfo(ctx, "DraftController", "Agent")
	ctx = callbacks.OnStart(ctx, map[string]any{
		"session_id": id,
		"input":      text,
	})

	defer func() {
		if r := recover(); r != nil {
			callbacks.OnError(ctx, fmt.Errorf("panic in Controller.SubmitMessage: %v", r))
			panic(r)
		}
	}()

	reply, err := c.submit(ctx, id, text)
	if err != nil {
		callbacks.OnError(ctx, err)
		return nil, err
	}

	callbacks.OnEnd(ctx, map[string]any{
		"reply":  reply,
		"status": string(reply.Status),
	})
	return reply, nil
}

func (c *Controller) submit(ctx context.Context, id, text string) (*Reply, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewInvalidRequest("session id is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.NewInvalidRequest("message is empty")
	}
	unlock := c.lock(id)
	defer unlock()

	stored, err := c.openForTurn(ctx, id)
	if err != nil {
		return nil, err
	}
	session := stored.Clone()
	session.ConversationHistory = append(session.ConversationHistory, types.Turn{Role: types.RoleUser, Content: text, At: c.now()})

	if c.cancelled(ctx, session, text) {
		session.Status = types.StatusAbandoned
		session.Inbox = nil
		session.ConversationHistory = append(session.ConversationHistory, types.Turn{Role: types.RoleAssistant, Content: cancelMessage, At: c.now()})
		if err := c.save(ctx, session); err != nil {
			return nil, err
		}
		c.logger.Info("Session abandoned by user", "session", id)
		return &Reply{SessionID: id, Status: session.Status, Message: cancelMessage}, nil
	}

	session.Inbox = &text
	result, err := c.run(ctx, session)
	if err != nil {
		c.logger.Warn("Turn failed, session unchanged", "session", id, "error", err)
		return nil, err
	}
	if err := c.save(ctx, result.Session); err != nil {
		return nil, err
	}
	return c.reply(result), nil
}

// run steps until the machine suspends or completes. Every continue must change the
// status or collect a parameter; the step count is capped.
func (c *Controller) run(ctx context.Context, session *types.DraftSession) (*StepResult, error) {
	current := session
	for i := 0; i < c.maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := c.machine.Step(ctx, current)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("Step", "session", current.ID, "from", current.Status, "to", result.Session.Status, "outcome", result.Outcome)
		if result.Outcome != OutcomeContinue {
			return result, nil
		}
		if !progressed(current, result.Session) {
			return nil, errors.NewNoProgress(string(current.Status))
		}
		current = result.Session
	}
	return nil, errors.NewStepLimitExceeded(c.maxSteps)
}

func progressed(before, after *types.DraftSession) bool {
	return before.Status != after.Status || len(after.CollectedParameters) > len(before.CollectedParameters)
}

// cancelled reports whether text abandons the session. Recognizer failures are
// logged and treated as a normal message.
func (c *Controller) cancelled(ctx context.Context, s *types.DraftSession, text string) bool {
	if c.intent == nil {
		return false
	}
	got, err := c.intent.RecognizeIntent(ctx, &types.ToolRequest{
		Purpose:      types.PurposeIntent,
		Status:       s.Status,
		DocumentType: s.DocumentType,
		MessagePair:  types.MessagePair{Question: s.LastQuestion, Answer: text},
	})
	if err != nil {
		c.logger.Warn("Intent recognition failed", "session", s.ID, "error", err)
		return false
	}
	return got == intent.Cancel
}

// openForTurn loads the session for a user message. An unknown id starts a new
// session, which is stored only once the turn succeeds.
func (c *Controller) openForTurn(ctx context.Context, id string) (*types.DraftSession, error) {
	s, ok, err := c.store.Read(ctx, id)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read session: %w", err))
	}
	if !ok {
		s = types.NewDraftSession(id)
		s.CreatedAt = c.now()
		c.logger.Debug("Session created by first message", "session", id)
		return s, nil
	}
	if s.Status.Terminal() {
		return nil, errors.NewSessionClosed(id, string(s.Status))
	}
	return s, nil
}

func (c *Controller) save(ctx context.Context, s *types.DraftSession) error {
	s.UpdatedAt = c.now()
	if err := c.store.Write(ctx, s); err != nil {
		return errors.NewInternal(fmt.Errorf("store session: %w", err))
	}
	return nil
}

func (c *Controller) reply(result *StepResult) *Reply {
	s := result.Session
	reply := &Reply{SessionID: s.ID, Status: s.Status}
	switch result.Outcome {
	case OutcomeDone:
		doc := result.Document
		reply.Message = completionMessage
		reply.Document = &doc
		reply.FieldMarkers = result.FieldMarkers
		reply.Malformed = result.Malformed
	default:
		reply.Message = result.Question
		reply.Question = result.Question
		reply.Reason = result.Reason
	}
	return reply
}
