package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
)

// Ensure *Coordinator implements the contract.Worker interface at compile time.
var _ contract.Worker = (*Coordinator)(nil)

type connectCommand struct {
	SessionID chat.SessionID
	Sink      contract.EventSink
}

func (c connectCommand) Session() chat.SessionID { return c.SessionID }

// whoQuery asks the coordinator for the names currently held, in its own goroutine.
type whoQuery struct {
	reply chan []string
}

func (whoQuery) Session() chat.SessionID { return chat.SessionID{} }

type session struct {
	chat.Session
	sink contract.EventSink
}

// Coordinator owns the session registry and every session state.
// All commands are processed one at a time, to completion, by Run: registry mutations,
// state transitions and the order of emitted deliveries all follow command arrival order.
type Coordinator struct {
	log        *slog.Logger
	clock      clockwork.Clock
	registry   *Registry
	metrics    *observability.Metrics
	commands   <-chan chat.Command
	deliveries chan<- contract.Delivery
	sessions   map[chat.SessionID]*session
}

func NewCoordinator(
	log *slog.Logger,
	clock clockwork.Clock,
	registry *Registry,
	metrics *observability.Metrics,
	commands <-chan chat.Command,
	deliveries chan<- contract.Delivery) *Coordinator {
	return &Coordinator{
		log:        log,
		clock:      clock,
		registry:   registry,
		metrics:    metrics,
		commands:   commands,
		deliveries: deliveries,
		sessions:   make(map[chat.SessionID]*session),
	}
}

// Run is restarted by the supervisor after a panic; sessions survive the restart
// because they live on the Coordinator, not on the stack.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Stopping coordinator")
			return ctx.Err()
		case cmd, ok := <-c.commands:
			if !ok {
				c.log.Debug("Command channel is closed")
				return nil
			}
			c.handle(ctx, cmd)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, cmd chat.Command) {
	var err error
	switch cmd := cmd.(type) {
	case connectCommand:
		err = c.onConnect(cmd)
	case chat.ClaimNameCommand:
		err = c.onClaimName(ctx, cmd)
	case chat.PostMessageCommand:
		err = c.onChatMessage(ctx, cmd)
	case chat.TypingCommand:
		err = c.onTyping(ctx, cmd.SessionID)
	case chat.StopTypingCommand:
		err = c.onStopTyping(ctx, cmd.SessionID)
	case chat.DisconnectCommand:
		c.onDisconnect(ctx, cmd.SessionID)
	case whoQuery:
		cmd.reply <- c.names()
	default:
		c.log.Warn(fmt.Sprintf("Unsupported command %T", cmd))
	}
	if err != nil {
		c.reject(ctx, cmd.Session(), err)
	}
}

func (c *Coordinator) onConnect(cmd connectCommand) error {
	if _, exists := c.sessions[cmd.SessionID]; exists {
		return errors.ErrSessionExists
	}
	c.sessions[cmd.SessionID] = &session{
		Session: chat.Session{ID: cmd.SessionID, State: chat.Connected},
		sink:    cmd.Sink,
	}
	c.metrics.SessionConnected()
	c.log.Debug("Session connected", "session_id", cmd.SessionID)
	return nil
}

func (c *Coordinator) onClaimName(ctx context.Context, cmd chat.ClaimNameCommand) error {
	s, ok := c.sessions[cmd.SessionID]
	if !ok {
		return errors.ErrSessionUnknown
	}
	if s.IsNamed() {
		return errors.ErrAlreadyNamed
	}

	assigned := c.registry.TryClaim(cmd.RequestedName, s.ID)
	s.Name = assigned
	s.State = chat.Named
	c.metrics.SessionNamed()
	c.log.Info("Name assigned", "session_id", s.ID, "requested", cmd.RequestedName, "name", assigned)

	c.emit(ctx, event.NameAssigned{AssignedName: assigned, RequestedName: cmd.RequestedName},
		[]contract.EventSink{s.sink})
	c.emit(ctx, event.FromMessage(chat.JoinNotice(assigned, c.now())), c.everyone())
	return nil
}

func (c *Coordinator) onChatMessage(ctx context.Context, cmd chat.PostMessageCommand) error {
	s, err := c.named(cmd.SessionID)
	if err != nil {
		return err
	}
	message := chat.Message{
		SenderName: s.Name,
		Text:       cmd.Text,
		CreatedAt:  c.now(),
	}
	c.emit(ctx, event.FromMessage(message), c.everyone())
	return nil
}

func (c *Coordinator) onTyping(ctx context.Context, id chat.SessionID) error {
	s, err := c.named(id)
	if err != nil {
		return err
	}
	c.emit(ctx, event.UserTyping{Name: s.Name}, c.everyoneBut(id))
	return nil
}

func (c *Coordinator) onStopTyping(ctx context.Context, id chat.SessionID) error {
	s, err := c.named(id)
	if err != nil {
		return err
	}
	c.emit(ctx, event.UserStoppedTyping{Name: s.Name}, c.everyoneBut(id))
	return nil
}

// onDisconnect is idempotent: an unknown or already closed session is ignored.
func (c *Coordinator) onDisconnect(ctx context.Context, id chat.SessionID) {
	s, ok := c.sessions[id]
	if !ok {
		c.log.Debug("Disconnect of unknown session ignored", "session_id", id)
		return
	}
	wasNamed := s.IsNamed()
	s.State = chat.Closed
	delete(c.sessions, id)
	c.metrics.SessionClosed(wasNamed)

	if !wasNamed {
		c.log.Debug("Unnamed session closed", "session_id", id)
		return
	}
	c.registry.Release(s.Name)
	c.log.Info("Session closed", "session_id", id, "name", s.Name)
	c.emit(ctx, event.FromMessage(chat.LeaveNotice(s.Name, c.now())), c.everyone())
}

// reject drops the offending command. The registry and the session are left untouched.
func (c *Coordinator) reject(ctx context.Context, id chat.SessionID, err error) {
	code := errors.Code(err)
	c.metrics.ProtocolViolation(code)
	c.log.Debug("Command rejected", "session_id", id, "error", err)

	s, ok := c.sessions[id]
	if !ok {
		return
	}
	c.emit(ctx, event.ProtocolError{Code: code, Reason: err.Error()}, []contract.EventSink{s.sink})
}

func (c *Coordinator) named(id chat.SessionID) (*session, error) {
	s, ok := c.sessions[id]
	if !ok {
		return nil, errors.ErrSessionUnknown
	}
	if !s.IsNamed() {
		return nil, errors.ErrNotNamed
	}
	return s, nil
}

func (c *Coordinator) emit(ctx context.Context, evt event.DomainEvent, recipients []contract.EventSink) {
	if len(recipients) == 0 {
		return
	}
	select {
	case <-ctx.Done():
	case c.deliveries <- contract.Delivery{Event: evt, Recipients: recipients}:
		c.metrics.EventBroadcast(string(evt.EventType()))
	}
}

func (c *Coordinator) everyone() []contract.EventSink {
	return lo.MapToSlice(c.sessions, func(_ chat.SessionID, s *session) contract.EventSink {
		return s.sink
	})
}

func (c *Coordinator) everyoneBut(id chat.SessionID) []contract.EventSink {
	sinks := make([]contract.EventSink, 0, len(c.sessions))
	for sid, s := range c.sessions {
		if sid != id {
			sinks = append(sinks, s.sink)
		}
	}
	return sinks
}

func (c *Coordinator) names() []string {
	names := make([]string, 0, len(c.sessions))
	for _, s := range c.sessions {
		if s.IsNamed() {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Coordinator) now() time.Time {
	return c.clock.Now().UTC()
}
