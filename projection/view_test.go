package projection

import (
	"testing"
	"time"

	"chatwire/domain"

	"github.com/stretchr/testify/require"
)

func msg(id int64, sender, recipient, text string) domain.Message {
	return domain.Message{
		ID: id, SenderID: sender, RecipientID: recipient,
		Text: text, CreatedAt: time.Now().UTC(),
	}
}

func texts(view *ConversationView) []string {
	var out []string
	for _, vm := range view.Messages() {
		out = append(out, vm.Text)
	}
	return out
}

func Test_SelectPeer_Enters_Loading(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	req.Equal(Idle, view.Phase())
	epoch := view.SelectPeer("bob")
	req.Equal(1, epoch)
	req.Equal(Loading, view.Phase())
	req.Empty(view.Messages())
}

func Test_ApplyHistory_Becomes_Base_Sequence(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	epoch := view.SelectPeer("bob")
	view.ApplyHistory(epoch, []domain.Message{
		msg(1, "alice", "bob", "one"),
		msg(2, "bob", "alice", "two"),
	})

	req.Equal(Ready, view.Phase())
	req.Equal([]string{"one", "two"}, texts(view))
}

func Test_Stale_History_Is_Discarded(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	staleEpoch := view.SelectPeer("bob")
	freshEpoch := view.SelectPeer("carol")

	// When the fetch for the previous peer resolves late
	view.ApplyHistory(staleEpoch, []domain.Message{msg(1, "alice", "bob", "old stuff")})

	// Then nothing of it lands in the new peer's view
	req.Equal(Loading, view.Phase())
	req.Empty(view.Messages())

	view.ApplyHistory(freshEpoch, []domain.Message{msg(1, "alice", "carol", "fresh")})
	req.Equal([]string{"fresh"}, texts(view))
}

func Test_Live_Events_Buffered_During_Loading(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	epoch := view.SelectPeer("bob")

	// Live events racing the history fetch
	view.ApplyLive(msg(3, "bob", "alice", "three"))
	req.Empty(view.Messages())

	// The fetch already contains message 3; the buffered copy must not duplicate it
	view.ApplyHistory(epoch, []domain.Message{
		msg(1, "alice", "bob", "one"),
		msg(2, "bob", "alice", "two"),
		msg(3, "bob", "alice", "three"),
	})

	req.Equal([]string{"one", "two", "three"}, texts(view))
}

func Test_Live_Event_For_Other_Conversation_Discarded(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	epoch := view.SelectPeer("bob")
	view.ApplyHistory(epoch, nil)

	view.ApplyLive(msg(1, "carol", "alice", "wrong window"))
	req.Empty(view.Messages())
}

func Test_Duplicate_Live_Event_Ignored(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	scrolls := 0
	view.OnScroll(func() { scrolls++ })

	epoch := view.SelectPeer("bob")
	view.ApplyHistory(epoch, nil)

	pushed := msg(1, "bob", "alice", "once")
	view.ApplyLive(pushed)
	view.ApplyLive(pushed)

	req.Equal([]string{"once"}, texts(view))
	// History install scrolled once, the first live append once more
	req.Equal(2, scrolls)
}

func Test_Ack_Replaces_Oldest_Matching_Echo(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	epoch := view.SelectPeer("bob")
	view.ApplyHistory(epoch, nil)

	view.AppendProvisional("prov-1", "bob", "hello", "")
	view.AppendProvisional("prov-2", "bob", "hello", "")

	view.ApplyAck("", msg(1, "alice", "bob", "hello"))

	shown := view.Messages()
	req.Len(shown, 2)
	req.Equal(int64(1), shown[0].ID)
	req.Empty(shown[0].ProvisionalID)
	req.Equal("prov-2", shown[1].ProvisionalID)
}

func Test_Ack_Without_Echo_Appends(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	epoch := view.SelectPeer("bob")
	view.ApplyHistory(epoch, nil)

	// A second tab of the same user receives the ack with no echo to match
	view.ApplyAck("", msg(1, "alice", "bob", "from other tab"))

	req.Equal([]string{"from other tab"}, texts(view))
}

func Test_DropProvisional_Removes_Failed_Echo(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	epoch := view.SelectPeer("bob")
	view.ApplyHistory(epoch, nil)

	view.AppendProvisional("prov-1", "bob", "doomed", "")
	view.DropProvisional("prov-1")

	req.Empty(view.Messages())
}

func Test_View_Stays_Ordered_By_Store_Id(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	epoch := view.SelectPeer("bob")
	view.ApplyHistory(epoch, []domain.Message{msg(1, "bob", "alice", "one")})

	view.AppendProvisional("prov-1", "bob", "mine", "")
	view.ApplyLive(msg(2, "bob", "alice", "two"))
	view.ApplyAck("prov-1", msg(3, "alice", "bob", "mine"))

	shown := view.Messages()
	req.Len(shown, 3)
	req.True(shown[0].ID < shown[1].ID && shown[1].ID < shown[2].ID)
}

func Test_Roster_Rebuilt_Wholesale(t *testing.T) {
	req := require.New(t)
	roster := NewRoster()

	var lastSeen []string
	roster.OnChange(func(ids []string) { lastSeen = ids })

	roster.Rebuild([]string{"alice", "bob"})
	req.True(roster.IsOnline("bob"))

	roster.Rebuild([]string{"alice"})
	req.False(roster.IsOnline("bob"))
	req.Equal([]string{"alice"}, lastSeen)
}

func Test_Ack_With_Rewritten_Body_Replaces_Echo_By_Id(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	epoch := view.SelectPeer("bob")
	view.ApplyHistory(epoch, nil)

	// The echo carries the raw input; the server trims and censors it
	view.AppendProvisional("prov-1", "bob", "hello  ", "")
	view.ApplyAck("prov-1", msg(1, "alice", "bob", "hello"))

	shown := view.Messages()
	req.Len(shown, 1)
	req.Equal(int64(1), shown[0].ID)
	req.Equal("hello", shown[0].Text)
	req.Empty(shown[0].ProvisionalID)
}

func Test_Reorder_Keeps_Echoes_After_Late_Live_Events(t *testing.T) {
	req := require.New(t)
	view := NewConversationView("alice")

	epoch := view.SelectPeer("bob")
	view.ApplyHistory(epoch, []domain.Message{msg(5, "bob", "alice", "five")})

	view.AppendProvisional("prov-1", "bob", "mine", "")

	// A replayed event with a smaller id lands after the echo
	view.ApplyLive(msg(3, "bob", "alice", "three"))

	shown := view.Messages()
	req.Len(shown, 3)
	req.Equal([]string{"three", "five", "mine"}, texts(view))
	req.Equal("prov-1", shown[2].ProvisionalID)
}
