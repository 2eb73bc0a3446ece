package heartlink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apierrors "github.com/heartlink/heartlink-client/internal/errors"
	"github.com/heartlink/heartlink-client/internal/job"
	"github.com/heartlink/heartlink-client/internal/realtime"
	"github.com/heartlink/heartlink-client/internal/shardqueue"
	"github.com/heartlink/heartlink-client/internal/types"
)

// MessageStatus is the local display status of a message the user sent.
type MessageStatus string

const (
	// StatusSending marks an optimistic entry not yet confirmed by the backend.
	StatusSending MessageStatus = "sending"
	// StatusSent marks a persisted message the peer has not read yet.
	StatusSent MessageStatus = "sent"
	// StatusDelivered marks a persisted message the peer has read.
	StatusDelivered MessageStatus = "delivered"
)

// DisplayMessage is one row of the conversation view: the message plus the
// local-only presentation state.
type DisplayMessage struct {
	Message
	FromMe bool
	Status MessageStatus // empty for the peer's messages
}

// messageStore is the slice of Client the synchronizer reads and writes
// through.
type messageStore interface {
	findConversation(ctx context.Context, user1, user2 string) (*Conversation, error)
	createConversation(ctx context.Context, user1, user2 string) (*Conversation, error)
	listMessages(ctx context.Context, conversationID string) ([]Message, error)
	insertMessage(ctx context.Context, req types.InsertMessageRequest) (*Message, error)
	markRead(ctx context.Context, conversationID, readerID string) (int, error)
}

// subscription is the scoped handle to a realtime stream.
type subscription interface {
	Unsubscribe()
}

// messageFeed provides conversation-scoped change subscriptions.
type messageFeed interface {
	subscribeMessages(ctx context.Context, conversationID string, h realtime.Handler) (subscription, error)
}

// ConversationSync reconciles one conversation between the local optimistic
// state, the backend rows, and the realtime feed. The in-memory message list
// is the single authoritative sequence; every mutation path (send, history
// load, realtime event) goes through the same mutex, so interleavings are
// serialized rather than racing.
//
// Display order is append order: history arrives ascending by creation time
// and new entries go to the tail, so "tail = most recent" holds as long as
// client/backend clock skew is not adversarial. Accepted limitation.
type ConversationSync struct {
	store  messageStore
	feed   messageFeed
	exec   executor
	log    zerolog.Logger
	selfID string
	peerID string

	onChange     func([]DisplayMessage)
	onSendFailed func(content string, err error)

	mu             sync.Mutex
	conversationID string
	messages       []DisplayMessage
	seen           map[string]struct{} // persisted ids of our own sends, for echo dedup
	sub            subscription
	closed         bool
}

// SyncOption configures a ConversationSync.
type SyncOption func(*ConversationSync)

// OnChange registers a callback invoked with a snapshot of the message list
// after every mutation. Runs outside the synchronizer's lock.
func OnChange(fn func([]DisplayMessage)) SyncOption {
	return func(s *ConversationSync) { s.onChange = fn }
}

// OnSendFailed registers a callback invoked when a send ultimately fails.
// It receives the original content so the caller can restore the input for
// retry.
func OnSendFailed(fn func(content string, err error)) SyncOption {
	return func(s *ConversationSync) { s.onSendFailed = fn }
}

// NewConversation resolves the canonical conversation between the active
// profile and peerID, subscribes to its realtime stream, and returns the
// synchronizer. Resolution failure is fatal to the conversation view and is
// returned to the caller.
func (c *Client) NewConversation(ctx context.Context, peerID string, opts ...SyncOption) (*ConversationSync, error) {
	self, err := c.ActiveProfile(ctx)
	if err != nil {
		return nil, err
	}
	s := newConversationSync(c, c, c.exec, self.ID, peerID, c.log, opts...)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newConversationSync(store messageStore, feed messageFeed, exec executor, selfID, peerID string, log zerolog.Logger, opts ...SyncOption) *ConversationSync {
	s := &ConversationSync{
		store:  store,
		feed:   feed,
		exec:   exec,
		log:    log.With().Str("component", "convsync").Logger(),
		selfID: selfID,
		peerID: peerID,
		seen:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start resolves the conversation row and attaches the realtime
// subscription. Safe to call once.
func (s *ConversationSync) Start(ctx context.Context) error {
	convID, err := s.resolve(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conversationID = convID
	s.mu.Unlock()

	if s.feed == nil {
		return nil
	}
	sub, err := s.feed.subscribeMessages(ctx, convID, s.handleEvent)
	if err != nil {
		return fmt.Errorf("subscribe conversation %s: %w", convID, err)
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// ConversationID returns the resolved row id, empty before Start succeeds.
func (s *ConversationSync) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// resolve canonicalizes the pair, looks up the row, and creates it when
// absent. A uniqueness conflict on create means another client won the race;
// the row is re-fetched and used.
func (s *ConversationSync) resolve(ctx context.Context) (string, error) {
	user1, user2 := types.CanonicalPair(s.selfID, s.peerID)

	conv, err := s.store.findConversation(ctx, user1, user2)
	if err == nil {
		return conv.ID, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return "", fmt.Errorf("resolve conversation: %w", err)
	}

	conv, err = s.store.createConversation(ctx, user1, user2)
	if apierrors.IsConflict(err) {
		conv, err = s.store.findConversation(ctx, user1, user2)
	}
	if err != nil {
		return "", fmt.Errorf("resolve conversation: %w", err)
	}
	return conv.ID, nil
}

// LoadHistory fetches the full message list ascending by creation time and
// replaces the local sequence with it. A fresh fetch every call; not
// restartable. After loading, the peer's unread messages are marked read in
// one batch; a read-mark failure is non-fatal and only logged, since read
// state reconciles on the next load.
func (s *ConversationSync) LoadHistory(ctx context.Context) ([]DisplayMessage, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrConversationClosed
	}
	convID := s.conversationID
	s.mu.Unlock()
	if convID == "" {
		return nil, errors.New("conversation not resolved")
	}

	rows, err := s.store.listMessages(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	display := make([]DisplayMessage, 0, len(rows))
	for _, m := range rows {
		display = append(display, s.toDisplay(m))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrConversationClosed
	}
	s.messages = display
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)

	if _, err := s.store.markRead(ctx, convID, s.selfID); err != nil {
		s.log.Debug().Err(err).Str("conversation", convID).Msg("read-mark failed")
	}
	return snapshot, nil
}

// Send appends an optimistic entry with status sending and enqueues the
// persistent insert on the per-conversation FIFO queue. It returns the
// optimistic entry immediately. On insert success the entry is replaced with
// the persisted row and its id recorded so the realtime echo is skipped; on
// failure the entry is removed and OnSendFailed receives the original
// content for retry.
func (s *ConversationSync) Send(ctx context.Context, content string) (*DisplayMessage, error) {
	if err := types.ValidateContent(content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrConversationClosed
	}
	convID := s.conversationID
	if convID == "" {
		s.mu.Unlock()
		return nil, errors.New("conversation not resolved")
	}

	optimistic := DisplayMessage{
		Message: Message{
			ID:             "temp-" + uuid.NewString(),
			ConversationID: convID,
			SenderID:       s.selfID,
			Content:        content,
			CreatedAt:      time.Now().UTC(),
		},
		FromMe: true,
		Status: StatusSending,
	}
	s.messages = append(s.messages, optimistic)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)

	tempID := optimistic.ID
	req := types.InsertMessageRequest{
		ConversationID: convID,
		SenderID:       s.selfID,
		Content:        content,
		Read:           false, // explicit, never a column default
	}

	insertJob := job.New(func(jobCtx context.Context) error {
		row, err := s.store.insertMessage(jobCtx, req)
		if err != nil {
			// Send failures are user-mediated retries, not queue retries:
			// roll back the optimistic entry and hand the content back.
			messagesFailedTotal.Inc()
			s.rollback(tempID, content, err)
			return nil
		}
		s.confirm(tempID, *row)
		return nil
	})

	if err := s.exec.Submit(ctx, convID, insertJob); err != nil {
		s.remove(tempID)
		if errors.Is(err, shardqueue.ErrQueueFull) {
			err = fmt.Errorf("%w: %v", ErrBackPressure, err)
		}
		return nil, &SendError{Content: content, Err: err}
	}
	messagesEnqueuedTotal.Inc()
	return &optimistic, nil
}

// Flush blocks until all enqueued sends for this conversation have run.
func (s *ConversationSync) Flush(ctx context.Context) error {
	s.mu.Lock()
	convID := s.conversationID
	s.mu.Unlock()

	done := make(chan struct{})
	j := job.New(func(context.Context) error {
		close(done)
		return nil
	})
	if err := s.exec.Submit(ctx, convID, j); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// confirm replaces the optimistic entry with the persisted row and records
// the id so the realtime echo of this insert is recognized and skipped.
func (s *ConversationSync) confirm(tempID string, row Message) {
	s.mu.Lock()
	if s.closed {
		// Component gone; the persisted row stands, local state is dead.
		s.mu.Unlock()
		return
	}
	s.seen[row.ID] = struct{}{}
	for i := range s.messages {
		if s.messages[i].ID == tempID {
			status := StatusSent
			if row.Read {
				status = StatusDelivered
			}
			s.messages[i] = DisplayMessage{Message: row, FromMe: true, Status: status}
			break
		}
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)
}

// rollback removes the optimistic entry and surfaces the failure with the
// original content for retry.
func (s *ConversationSync) rollback(tempID, content string, cause error) {
	s.remove(tempID)
	s.log.Warn().Err(cause).Msg("message send failed")
	if s.onSendFailed != nil {
		s.onSendFailed(content, &SendError{Content: content, Err: cause})
	}
}

func (s *ConversationSync) remove(tempID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for i := range s.messages {
		if s.messages[i].ID == tempID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)
}

// handleEvent adapts raw feed events to the typed handlers.
func (s *ConversationSync) handleEvent(ev realtime.Event) {
	var m Message
	if err := unmarshalEvent(ev.New, &m); err != nil {
		s.log.Debug().Err(err).Msg("bad message event payload")
		return
	}
	switch ev.Type {
	case realtime.EventInsert:
		s.HandleRealtimeInsert(m)
	case realtime.EventUpdate:
		s.HandleRealtimeUpdate(m)
	}
}

// HandleRealtimeInsert reconciles a pushed insert. Our own echo (sender is
// us, or the id was recorded at confirm time) and ids already present are
// discarded, so a message id appears at most once in the displayed list.
// A genuine peer message is appended and immediately read-marked, since the
// viewer is actively looking at the conversation.
func (s *ConversationSync) HandleRealtimeInsert(m Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if m.SenderID == s.selfID {
		s.mu.Unlock()
		return
	}
	if _, ours := s.seen[m.ID]; ours {
		s.mu.Unlock()
		return
	}
	for i := range s.messages {
		if s.messages[i].ID == m.ID {
			s.mu.Unlock()
			return
		}
	}
	s.messages = append(s.messages, DisplayMessage{Message: m, FromMe: false})
	convID := s.conversationID
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)

	if !m.Read {
		// Non-fatal; reconciles on next history load.
		go func() {
			if _, err := s.store.markRead(context.Background(), convID, s.selfID); err != nil {
				s.log.Debug().Err(err).Msg("read-mark after realtime insert failed")
			}
		}()
	}
}

// HandleRealtimeUpdate patches the read flag of a known message. The flag
// only ever moves false→true locally, whatever the event says, and the
// display status of our own messages is recomputed from it.
func (s *ConversationSync) HandleRealtimeUpdate(m Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	updated := false
	for i := range s.messages {
		if s.messages[i].ID != m.ID {
			continue
		}
		if m.Read && !s.messages[i].Read {
			s.messages[i].Read = true
		}
		if s.messages[i].FromMe {
			if s.messages[i].Read {
				s.messages[i].Status = StatusDelivered
			} else {
				s.messages[i].Status = StatusSent
			}
		}
		updated = true
		break
	}
	if !updated {
		s.mu.Unlock()
		return
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)
}

// Messages returns a snapshot of the displayed sequence.
func (s *ConversationSync) Messages() []DisplayMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close detaches the realtime subscription and clears per-session state so
// nothing leaks across profile switches. Late job or feed results arriving
// after Close are ignored.
func (s *ConversationSync) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.seen = make(map[string]struct{})
	s.messages = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (s *ConversationSync) snapshotLocked() []DisplayMessage {
	out := make([]DisplayMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ConversationSync) notify(snapshot []DisplayMessage) {
	if s.onChange != nil {
		s.onChange(snapshot)
	}
}

func (s *ConversationSync) toDisplay(m Message) DisplayMessage {
	d := DisplayMessage{Message: m, FromMe: m.SenderID == s.selfID}
	if d.FromMe {
		if m.Read {
			d.Status = StatusDelivered
		} else {
			d.Status = StatusSent
		}
	}
	return d
}
