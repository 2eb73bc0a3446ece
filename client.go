// Package heartlink is the client SDK for the heartlink dating backend: a
// hosted relational service exposing row CRUD, auth, and a realtime change
// feed. The SDK's own logic lives in three components built on top of the
// row layer: the presence tracker, the conversation synchronizer, and the
// profile session manager.
package heartlink

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/heartlink/heartlink-client/internal/api"
	"github.com/heartlink/heartlink-client/internal/job"
	"github.com/heartlink/heartlink-client/internal/realtime"
	"github.com/heartlink/heartlink-client/internal/shardqueue"
	"github.com/heartlink/heartlink-client/internal/types"
)

// Client is the explicitly constructed service handle for the backend. All
// components take it (or a narrower interface it satisfies) as a dependency
// so tests can substitute fakes; there is no package-level singleton.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	exec    executor
	feed    *realtime.Feed
	log     zerolog.Logger

	heartbeat time.Duration // default heartbeat interval for presence trackers

	tokenMu     sync.RWMutex
	accessToken string

	closedOnce uint32 // ensures Close is idempotent
}

// New constructs a Client for the backend at baseURL, authenticating with
// the project API key. Additional options can be provided via functional
// arguments.
func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		panic("baseURL cannot be empty")
	}
	if apiKey == "" {
		panic("apiKey cannot be empty")
	}

	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zerolog.Nop(),
	}

	// Auto-enable debug via env variable without changing code.
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			panic(err)
		}
	}
	if c.exec == nil {
		c.exec = newDefaultExecutor()
	}
	if c.feed == nil {
		c.feed = realtime.New(baseURL, apiKey, c.log)
	}

	c.wrapTransportWithAuth()
	return c
}

// NewFromEnv constructs a Client from HEARTLINK_* environment variables.
func NewFromEnv(opts ...Option) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithHTTPTimeout(cfg.HTTPTimeout)}, opts...)
	c := New(cfg.BaseURL, cfg.APIKey, opts...)
	c.heartbeat = cfg.HeartbeatInterval
	return c, nil
}

// wrapTransportWithAuth installs the transport that attaches the project API
// key and, once signed in, the user's bearer token to every request.
func (c *Client) wrapTransportWithAuth() {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = &authTransport{
		base:   base,
		apiKey: c.apiKey,
		token:  c.token,
	}
}

// authTransport adds the apikey header and an Authorization bearer. Before
// sign-in the bearer is the API key itself, matching the backend's anonymous
// role convention.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
	token  func() string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("apikey", t.apiKey)
	bearer := t.token()
	if bearer == "" {
		bearer = t.apiKey
	}
	cloned.Header.Set("Authorization", "Bearer "+bearer)
	return t.base.RoundTrip(cloned)
}

// Close stops the send queue and the realtime feed. Safe to call multiple
// times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	if c.exec != nil {
		c.exec.Stop()
	}
	if c.feed != nil {
		return c.feed.Close()
	}
	return nil
}

// Flush blocks until all previously enqueued sends for the conversation have
// been executed, by submitting a no-op job and waiting for it to run.
func (c *Client) Flush(ctx context.Context, conversationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan struct{})
	j := job.New(func(context.Context) error {
		close(done)
		return nil
	})
	if err := c.exec.Submit(ctx, conversationID, j); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// newDefaultExecutor constructs the shardqueue executor with sane defaults.
func newDefaultExecutor() *shardqueue.ShardExecutor {
	cfg := shardqueue.Config{Shards: 4, QueueSize: 1000}
	return shardqueue.NewShardExecutor(cfg)
}

// --------------------------------------------------------------------
// Profile operations - delegated to internal/api
// --------------------------------------------------------------------

// ActiveProfile returns the signed-in account's active profile, or
// ErrNoActiveProfile when none is flagged active.
func (c *Client) ActiveProfile(ctx context.Context) (*Profile, error) {
	accountID, err := c.accountID()
	if err != nil {
		return nil, err
	}
	p, err := api.GetActiveProfile(ctx, c.http, c.baseURL, accountID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, ErrNoActiveProfile
	}
	return p, err
}

// ManagedProfiles lists every profile under the account, oldest first.
// Family accounts hold one row per member.
func (c *Client) ManagedProfiles(ctx context.Context) ([]Profile, error) {
	accountID, err := c.accountID()
	if err != nil {
		return nil, err
	}
	return api.ListProfiles(ctx, c.http, c.baseURL, accountID)
}

// GetProfile fetches any profile by ID (e.g. a discovery card or chat peer).
func (c *Client) GetProfile(ctx context.Context, profileID string) (*Profile, error) {
	return api.GetProfile(ctx, c.http, c.baseURL, profileID)
}

// CreateFamilyProfile adds a family member profile under the account. New
// profiles start inactive; activate them with ProfileSession.SwitchTo.
func (c *Client) CreateFamilyProfile(ctx context.Context, req CreateProfileRequest) (*Profile, error) {
	accountID, err := c.accountID()
	if err != nil {
		return nil, err
	}
	req.AccountID = accountID
	req.IsActive = false
	req.AccountType = "family"
	return api.InsertProfile(ctx, c.http, c.baseURL, req)
}

// UpdateProfile patches profile fields; nil fields are left untouched.
func (c *Client) UpdateProfile(ctx context.Context, profileID string, req UpdateProfileRequest) (*Profile, error) {
	return api.UpdateProfile(ctx, c.http, c.baseURL, profileID, req)
}

func (c *Client) deactivateAll(ctx context.Context) error {
	accountID, err := c.accountID()
	if err != nil {
		return err
	}
	return api.DeactivateAll(ctx, c.http, c.baseURL, accountID)
}

func (c *Client) activateOne(ctx context.Context, profileID string) (*Profile, error) {
	accountID, err := c.accountID()
	if err != nil {
		return nil, err
	}
	return api.ActivateOne(ctx, c.http, c.baseURL, accountID, profileID)
}

// --------------------------------------------------------------------
// Presence operations - delegated to internal/api
// --------------------------------------------------------------------

func (c *Client) upsertPresence(ctx context.Context, w types.PresenceWrite) error {
	return api.UpsertPresence(ctx, c.http, c.baseURL, w)
}

func (c *Client) updatePresence(ctx context.Context, w types.PresenceWrite) error {
	return api.UpdatePresence(ctx, c.http, c.baseURL, w)
}

func (c *Client) insertPresence(ctx context.Context, w types.PresenceWrite) error {
	return api.InsertPresence(ctx, c.http, c.baseURL, w)
}

// PeerPresence reads another profile's presence row. A missing row means the
// profile has never been online.
func (c *Client) PeerPresence(ctx context.Context, profileID string) (*PresenceRecord, error) {
	rec, err := api.GetPresence(ctx, c.http, c.baseURL, profileID)
	if errors.Is(err, types.ErrNotFound) {
		return &PresenceRecord{ProfileID: profileID, Online: false}, nil
	}
	return rec, err
}

// WatchPresence subscribes to presence changes for one profile. The returned
// subscription must be unsubscribed when the observing view goes away.
func (c *Client) WatchPresence(ctx context.Context, profileID string, h func(PresenceRecord)) (*realtime.Subscription, error) {
	return c.feed.Subscribe(ctx, "user_presence", "user_id=eq."+profileID, func(ev realtime.Event) {
		var rec PresenceRecord
		if err := unmarshalEvent(ev.New, &rec); err != nil {
			c.log.Debug().Err(err).Msg("bad presence event payload")
			return
		}
		h(rec)
	})
}

// --------------------------------------------------------------------
// Conversation/message row operations (used by ConversationSync)
// --------------------------------------------------------------------

func (c *Client) findConversation(ctx context.Context, user1, user2 string) (*Conversation, error) {
	return api.FindConversation(ctx, c.http, c.baseURL, user1, user2)
}

func (c *Client) createConversation(ctx context.Context, user1, user2 string) (*Conversation, error) {
	return api.CreateConversation(ctx, c.http, c.baseURL, user1, user2)
}

func (c *Client) listMessages(ctx context.Context, conversationID string) ([]Message, error) {
	return api.ListMessages(ctx, c.http, c.baseURL, conversationID)
}

func (c *Client) insertMessage(ctx context.Context, req types.InsertMessageRequest) (*Message, error) {
	return api.InsertMessage(ctx, c.http, c.baseURL, req)
}

func (c *Client) markRead(ctx context.Context, conversationID, readerID string) (int, error) {
	return api.MarkRead(ctx, c.http, c.baseURL, conversationID, readerID)
}

func (c *Client) subscribeMessages(ctx context.Context, conversationID string, h realtime.Handler) (subscription, error) {
	sub, err := c.feed.Subscribe(ctx, "messages", "conversation_id=eq."+conversationID, h)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// --------------------------------------------------------------------
// Likes / dislikes
// --------------------------------------------------------------------

// LikeProfile records the active profile liking another.
func (c *Client) LikeProfile(ctx context.Context, likerID, likedID string) error {
	return api.InsertLike(ctx, c.http, c.baseURL, likerID, likedID)
}

// UnlikeProfile withdraws a like.
func (c *Client) UnlikeProfile(ctx context.Context, likerID, likedID string) error {
	return api.DeleteLike(ctx, c.http, c.baseURL, likerID, likedID)
}

// DislikeProfile records a discovery pass so the profile is not shown again.
func (c *Client) DislikeProfile(ctx context.Context, profileID, dislikedID string) error {
	return api.InsertDislike(ctx, c.http, c.baseURL, profileID, dislikedID)
}

// LikedIDs returns the IDs a profile has liked, for the discovery exclusion
// set.
func (c *Client) LikedIDs(ctx context.Context, profileID string) ([]string, error) {
	return api.ListLikedIDs(ctx, c.http, c.baseURL, profileID)
}

// DislikedIDs returns the IDs a profile has passed on.
func (c *Client) DislikedIDs(ctx context.Context, profileID string) ([]string, error) {
	return api.ListDislikedIDs(ctx, c.http, c.baseURL, profileID)
}

// Likers returns likes pointing at the given profile, newest first.
func (c *Client) Likers(ctx context.Context, profileID string) ([]Like, error) {
	return api.ListLikers(ctx, c.http, c.baseURL, profileID)
}

// --------------------------------------------------------------------
// Chat list
// --------------------------------------------------------------------

// ChatList builds the chat overview for a profile: one entry per
// conversation that has at least one message, newest activity first, with
// the peer profile and unread count attached.
func (c *Client) ChatList(ctx context.Context, profileID string) ([]ChatSummary, error) {
	convs, err := api.ListConversations(ctx, c.http, c.baseURL, profileID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(convs))
	for _, conv := range convs {
		peerID := conv.User2ID
		if peerID == profileID {
			peerID = conv.User1ID
		}

		last, err := api.LastMessage(ctx, c.http, c.baseURL, conv.ID)
		if errors.Is(err, types.ErrNotFound) {
			// Conversation row exists but nobody has written yet.
			continue
		}
		if err != nil {
			return nil, err
		}

		peer, err := api.GetProfile(ctx, c.http, c.baseURL, peerID)
		if err != nil {
			return nil, err
		}

		unread, err := api.UnreadCount(ctx, c.http, c.baseURL, conv.ID, profileID)
		if err != nil {
			c.log.Debug().Err(err).Str("conversation", conv.ID).Msg("unread count failed")
			unread = 0
		}

		summaries = append(summaries, ChatSummary{
			ConversationID: conv.ID,
			Peer:           *peer,
			LastMessage:    *last,
			UnreadCount:    unread,
			UpdatedAt:      conv.UpdatedAt,
		})
	}
	return summaries, nil
}
