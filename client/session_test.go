package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chatwire/domain"
	"chatwire/projection"
	"chatwire/wire"

	"github.com/stretchr/testify/require"
)

// scriptedFetcher resolves each fetch with the history prepared for that
// peer, optionally blocking until released.
type scriptedFetcher struct {
	mu      sync.Mutex
	history map[string][]domain.Message
	gate    map[string]chan struct{}
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		history: make(map[string][]domain.Message),
		gate:    make(map[string]chan struct{}),
	}
}

func (f *scriptedFetcher) prepare(peerID string, history []domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[peerID] = history
}

func (f *scriptedFetcher) hold(peerID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	release := make(chan struct{})
	f.gate[peerID] = release
	return release
}

func (f *scriptedFetcher) Fetch(_ context.Context, peerID string) ([]domain.Message, error) {
	f.mu.Lock()
	release := f.gate[peerID]
	history := f.history[peerID]
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	return history, nil
}

type recordingSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *recordingSender) Send(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]byte(nil), frame...))
	return nil
}

func (s *recordingSender) sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

func encode(t *testing.T, event string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(wire.Envelope{Event: event, Payload: raw})
	require.NoError(t, err)
	return frame
}

func newTestSession(cfg Config) (*Session, *scriptedFetcher, *recordingSender) {
	fetcher := newScriptedFetcher()
	sender := &recordingSender{}
	return NewSession(slog.Default(), cfg, "alice", fetcher, sender), fetcher, sender
}

func Test_SelectPeer_Loads_History(t *testing.T) {
	req := require.New(t)
	session, fetcher, _ := newTestSession(Config{})

	fetcher.prepare("bob", []domain.Message{
		{ID: 1, SenderID: "bob", RecipientID: "alice", Text: "hi"},
	})
	session.SelectPeer(context.Background(), "bob")

	req.Eventually(func() bool {
		return session.View().Phase() == projection.Ready
	}, time.Second, 5*time.Millisecond)
	req.Len(session.View().Messages(), 1)
}

func Test_Loading_Floor_Delays_Ready(t *testing.T) {
	req := require.New(t)
	session, fetcher, _ := newTestSession(Config{MinLoadingDuration: 150 * time.Millisecond})

	fetcher.prepare("bob", nil)
	session.SelectPeer(context.Background(), "bob")

	// The fetch resolves instantly, but the floor keeps the view loading
	time.Sleep(50 * time.Millisecond)
	req.Equal(projection.Loading, session.View().Phase())

	req.Eventually(func() bool {
		return session.View().Phase() == projection.Ready
	}, time.Second, 5*time.Millisecond)
}

func Test_Stale_Fetch_Never_Lands_In_New_View(t *testing.T) {
	req := require.New(t)
	session, fetcher, _ := newTestSession(Config{})

	fetcher.prepare("bob", []domain.Message{
		{ID: 7, SenderID: "bob", RecipientID: "alice", Text: "stale"},
	})
	release := fetcher.hold("bob")
	fetcher.prepare("carol", []domain.Message{
		{ID: 1, SenderID: "carol", RecipientID: "alice", Text: "fresh"},
	})

	session.SelectPeer(context.Background(), "bob")
	session.SelectPeer(context.Background(), "carol")
	close(release)

	req.Eventually(func() bool {
		return session.View().Phase() == projection.Ready
	}, time.Second, 5*time.Millisecond)

	shown := session.View().Messages()
	req.Len(shown, 1)
	req.Equal("fresh", shown[0].Text)
}

func Test_Send_Appends_Echo_And_Emits_Frame(t *testing.T) {
	req := require.New(t)
	session, fetcher, sender := newTestSession(Config{})

	fetcher.prepare("bob", nil)
	session.SelectPeer(context.Background(), "bob")
	req.Eventually(func() bool {
		return session.View().Phase() == projection.Ready
	}, time.Second, 5*time.Millisecond)

	req.NoError(session.Send(context.Background(), "hello", ""))

	shown := session.View().Messages()
	req.Len(shown, 1)
	req.NotEmpty(shown[0].ProvisionalID)
	req.Equal("hello", shown[0].Text)

	frames := sender.sent()
	req.Len(frames, 1)
	env, err := wire.Decode(frames[0])
	req.NoError(err)
	req.Equal(wire.EventSendMessage, env.Event)
}

func Test_Send_Without_Peer_Fails(t *testing.T) {
	req := require.New(t)
	session, _, _ := newTestSession(Config{})

	req.ErrorIs(session.Send(context.Background(), "hello", ""), ErrNoPeerSelected)
}

func Test_Ack_Resolves_Echo(t *testing.T) {
	req := require.New(t)
	session, fetcher, _ := newTestSession(Config{})

	fetcher.prepare("bob", nil)
	session.SelectPeer(context.Background(), "bob")
	req.Eventually(func() bool {
		return session.View().Phase() == projection.Ready
	}, time.Second, 5*time.Millisecond)

	req.NoError(session.Send(context.Background(), "hello", ""))

	session.HandleFrame(encode(t, wire.EventMessage, wire.Message{
		ID: 1, SenderID: "alice", RecipientID: "bob",
		Text: "hello", CreatedAt: time.Now().UTC(),
	}))

	shown := session.View().Messages()
	req.Len(shown, 1)
	req.Equal(int64(1), shown[0].ID)
	req.Empty(shown[0].ProvisionalID)
}

func Test_Failure_Notice_Drops_Echo(t *testing.T) {
	req := require.New(t)
	session, fetcher, _ := newTestSession(Config{})

	var noticed string
	session.OnNotice(func(code, reason string) { noticed = code })

	fetcher.prepare("bob", nil)
	session.SelectPeer(context.Background(), "bob")
	req.Eventually(func() bool {
		return session.View().Phase() == projection.Ready
	}, time.Second, 5*time.Millisecond)

	req.NoError(session.Send(context.Background(), "hello", ""))
	session.HandleFrame(encode(t, wire.EventError, wire.Error{Code: "validation", Reason: "empty body"}))

	req.Empty(session.View().Messages())
	req.Equal("validation", noticed)
}

func Test_Roster_Frame_Rebuilds_Roster(t *testing.T) {
	req := require.New(t)
	session, _, _ := newTestSession(Config{})

	session.HandleFrame(encode(t, wire.EventOnlineUsers, wire.OnlineUsers{IDs: []string{"alice", "bob"}}))
	req.True(session.Roster().IsOnline("bob"))

	session.HandleFrame(encode(t, wire.EventOnlineUsers, wire.OnlineUsers{IDs: []string{"alice"}}))
	req.False(session.Roster().IsOnline("bob"))
}

func Test_Live_Message_From_Peer_Appends(t *testing.T) {
	req := require.New(t)
	session, fetcher, _ := newTestSession(Config{})

	fetcher.prepare("bob", nil)
	session.SelectPeer(context.Background(), "bob")
	req.Eventually(func() bool {
		return session.View().Phase() == projection.Ready
	}, time.Second, 5*time.Millisecond)

	session.HandleFrame(encode(t, wire.EventMessage, wire.Message{
		ID: 1, SenderID: "bob", RecipientID: "alice",
		Text: "hey", CreatedAt: time.Now().UTC(),
	}))

	shown := session.View().Messages()
	req.Len(shown, 1)
	req.Equal("hey", shown[0].Text)
}

func Test_Ack_With_Rewritten_Body_Resolves_Echo(t *testing.T) {
	req := require.New(t)
	session, fetcher, _ := newTestSession(Config{})

	fetcher.prepare("bob", nil)
	session.SelectPeer(context.Background(), "bob")
	req.Eventually(func() bool {
		return session.View().Phase() == projection.Ready
	}, time.Second, 5*time.Millisecond)

	// The raw input has trailing whitespace; the server acks the trimmed text
	req.NoError(session.Send(context.Background(), "hello  ", ""))
	session.HandleFrame(encode(t, wire.EventMessage, wire.Message{
		ID: 1, SenderID: "alice", RecipientID: "bob",
		Text: "hello", CreatedAt: time.Now().UTC(),
	}))

	// Exactly one message remains and it is the canonical one
	shown := session.View().Messages()
	req.Len(shown, 1)
	req.Equal(int64(1), shown[0].ID)
	req.Equal("hello", shown[0].Text)
	req.Empty(shown[0].ProvisionalID)
}
