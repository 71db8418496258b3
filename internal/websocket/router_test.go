package websocket

import (
	"context"
	"strings"
	"testing"

	"solarchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserSendBroadcastsToAllMentors(t *testing.T) {
	hub, router, sessions, messages := newTestEnv()

	mentor := newTestClient(hub, router, sessions, models.Identity{ID: "m1", Name: "Mona", Role: models.RoleMentor})
	admin := newTestClient(hub, router, sessions, models.Identity{ID: "a1", Name: "Ada", Role: models.RoleAdmin})
	otherUser := newTestClient(hub, router, sessions, models.Identity{ID: "u2", Name: "Bob", Role: models.RoleUser})
	joinClient(t, mentor)
	joinClient(t, admin)
	joinClient(t, otherUser)

	sender := newTestClient(hub, router, sessions, models.Identity{ID: "u1", Name: "Alice", Role: models.RoleUser})
	joinClient(t, sender)

	drainEvents(mentor)
	drainEvents(admin)
	drainEvents(otherUser)

	router.HandleSend(sender, "Hello", AnyMentor(), nil)

	for _, staff := range []*Client{mentor, admin} {
		ev := recvEvent(t, staff)
		require.Equal(t, EventReceive, ev.Type)

		var payload ReceivePayload
		decodePayload(t, ev, &payload)
		assert.Equal(t, "Hello", payload.Message)
		assert.Equal(t, "Alice", payload.Sender)
		assert.Equal(t, "u1", payload.SenderID)
		assert.Equal(t, models.MessageTypeText, payload.MessageType)
	}

	// Plain users other than the sender receive nothing.
	assert.Nil(t, tryRecv(otherUser))

	// The originating connection gets only the acknowledgment.
	ack := recvEvent(t, sender)
	require.Equal(t, EventSendAck, ack.Type)
	var ackPayload AckPayload
	decodePayload(t, ack, &ackPayload)
	assert.True(t, ackPayload.Success)
	assert.Nil(t, tryRecv(sender))

	stored := messages.all()
	require.Len(t, stored, 1)
	assert.Equal(t, models.SenderTypeUser, stored[0].SenderType)
	assert.Equal(t, models.RecipientAnyMentor, stored[0].RecipientID)
	assert.False(t, stored[0].IsRead)
	assert.Equal(t, sender.SessionID(), stored[0].ChatSessionID)
}

func TestMentorReplyTargetsOnlyNamedUser(t *testing.T) {
	hub, router, sessions, messages := newTestEnv()

	user := newTestClient(hub, router, sessions, models.Identity{ID: "u1", Name: "Alice", Role: models.RoleUser})
	joinClient(t, user)

	mentor := newTestClient(hub, router, sessions, models.Identity{ID: "m1", Name: "Mona", Role: models.RoleMentor})
	otherMentor := newTestClient(hub, router, sessions, models.Identity{ID: "m2", Name: "Max", Role: models.RoleMentor})
	joinClient(t, mentor)
	joinClient(t, otherMentor)

	router.HandleSend(mentor, "How can I help?", SpecificUser("u1"), nil)

	ev := recvEvent(t, user)
	require.Equal(t, EventReceive, ev.Type)
	var payload ReceivePayload
	decodePayload(t, ev, &payload)
	assert.Equal(t, "How can I help?", payload.Message)
	assert.Equal(t, "Mona", payload.Sender)

	assert.Nil(t, tryRecv(otherMentor), "mentor replies go only to the named user")

	// The reply inherits the user's open session and activates it.
	stored := messages.all()
	require.Len(t, stored, 1)
	assert.Equal(t, models.SenderTypeMentor, stored[0].SenderType)
	assert.Equal(t, user.SessionID(), stored[0].ChatSessionID)

	session, err := sessions.GetByID(context.Background(), user.SessionID())
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, session.Status)
	assert.Equal(t, "m1", session.MentorID)
}

func TestEchoToOtherTabsOnly(t *testing.T) {
	hub, router, sessions, _ := newTestEnv()

	identity := models.Identity{ID: "u1", Name: "Alice", Role: models.RoleUser}
	tab1 := newTestClient(hub, router, sessions, identity)
	tab2 := newTestClient(hub, router, sessions, identity)
	joinClient(t, tab1)
	joinClient(t, tab2)

	router.HandleSend(tab1, "ping", AnyMentor(), nil)

	// Tab 2 sees the echo.
	echo := recvEvent(t, tab2)
	require.Equal(t, EventReceive, echo.Type)
	var payload ReceivePayload
	decodePayload(t, echo, &payload)
	assert.Equal(t, "ping", payload.Message)

	// Tab 1 gets only the ack, never its own echo.
	ack := recvEvent(t, tab1)
	require.Equal(t, EventSendAck, ack.Type)
	assert.Nil(t, tryRecv(tab1))
}

func TestEmptyContentRejected(t *testing.T) {
	hub, router, sessions, messages := newTestEnv()

	sender := newTestClient(hub, router, sessions, models.Identity{ID: "u1", Name: "Alice", Role: models.RoleUser})
	joinClient(t, sender)

	router.HandleSend(sender, "   \t ", AnyMentor(), nil)

	// Failure surfaces as a synthesized system message plus a failed ack.
	sys := recvEvent(t, sender)
	require.Equal(t, EventReceive, sys.Type)
	var sysPayload ReceivePayload
	decodePayload(t, sys, &sysPayload)
	assert.Equal(t, models.MessageTypeSystem, sysPayload.MessageType)

	ack := recvEvent(t, sender)
	require.Equal(t, EventSendAck, ack.Type)
	var ackPayload AckPayload
	decodePayload(t, ack, &ackPayload)
	assert.False(t, ackPayload.Success)
	assert.NotEmpty(t, ackPayload.Error)

	assert.Empty(t, messages.all(), "rejected content must never be persisted")
}

func TestContentLengthBoundary(t *testing.T) {
	hub, router, sessions, messages := newTestEnv()

	sender := newTestClient(hub, router, sessions, models.Identity{ID: "u1", Name: "Alice", Role: models.RoleUser})
	joinClient(t, sender)

	// Exactly the limit is accepted.
	router.HandleSend(sender, strings.Repeat("a", models.MaxMessageLength), AnyMentor(), nil)
	ack := recvEvent(t, sender)
	require.Equal(t, EventSendAck, ack.Type)
	var ackPayload AckPayload
	decodePayload(t, ack, &ackPayload)
	assert.True(t, ackPayload.Success)
	require.Len(t, messages.all(), 1)

	// One over the limit is rejected and not persisted.
	router.HandleSend(sender, strings.Repeat("a", models.MaxMessageLength+1), AnyMentor(), nil)
	sys := recvEvent(t, sender)
	require.Equal(t, EventReceive, sys.Type)
	ack = recvEvent(t, sender)
	require.Equal(t, EventSendAck, ack.Type)
	decodePayload(t, ack, &ackPayload)
	assert.False(t, ackPayload.Success)
	assert.Len(t, messages.all(), 1)

	// The limit counts characters: multibyte content of exactly the
	// limit is accepted even though its byte length is larger.
	router.HandleSend(sender, strings.Repeat("é", models.MaxMessageLength), AnyMentor(), nil)
	ack = recvEvent(t, sender)
	require.Equal(t, EventSendAck, ack.Type)
	decodePayload(t, ack, &ackPayload)
	assert.True(t, ackPayload.Success)
	assert.Len(t, messages.all(), 2)
}

func TestPersistenceFailureBlocksDelivery(t *testing.T) {
	hub, router, sessions, messages := newTestEnv()
	messages.failInsert = true

	mentor := newTestClient(hub, router, sessions, models.Identity{ID: "m1", Name: "Mona", Role: models.RoleMentor})
	joinClient(t, mentor)

	sender := newTestClient(hub, router, sessions, models.Identity{ID: "u1", Name: "Alice", Role: models.RoleUser})
	joinClient(t, sender)
	drainEvents(mentor)

	router.HandleSend(sender, "Hello", AnyMentor(), nil)

	sys := recvEvent(t, sender)
	require.Equal(t, EventReceive, sys.Type)
	ack := recvEvent(t, sender)
	require.Equal(t, EventSendAck, ack.Type)
	var ackPayload AckPayload
	decodePayload(t, ack, &ackPayload)
	assert.False(t, ackPayload.Success)

	assert.Nil(t, tryRecv(mentor), "a failed persist must not deliver anything")
}

func TestOfflineRecipientIsNotAnError(t *testing.T) {
	hub, router, sessions, messages := newTestEnv()

	// No mentors connected at all.
	sender := newTestClient(hub, router, sessions, models.Identity{ID: "u1", Name: "Alice", Role: models.RoleUser})
	joinClient(t, sender)

	router.HandleSend(sender, "Anyone there?", AnyMentor(), nil)

	ack := recvEvent(t, sender)
	require.Equal(t, EventSendAck, ack.Type)
	var ackPayload AckPayload
	decodePayload(t, ack, &ackPayload)
	assert.True(t, ackPayload.Success, "a delivery miss is not an error")

	stored := messages.all()
	require.Len(t, stored, 1)
	assert.Equal(t, "Anyone there?", stored[0].Content)
	assert.False(t, stored[0].IsRead)
}

func TestReadReconciliationIsIdempotent(t *testing.T) {
	hub, router, sessions, messages := newTestEnv()

	sender := newTestClient(hub, router, sessions, models.Identity{ID: "u1", Name: "Alice", Role: models.RoleUser})
	joinClient(t, sender)

	router.HandleSend(sender, "first", AnyMentor(), nil)
	router.HandleSend(sender, "second", AnyMentor(), nil)

	ctx := context.Background()

	updated, err := messages.MarkThreadRead(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	// Re-reading an already-read thread changes nothing.
	updated, err = messages.MarkThreadRead(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Zero(t, updated)

	for _, msg := range messages.all() {
		assert.True(t, msg.IsRead)
		assert.NotNil(t, msg.ReadAt)
		assert.Equal(t, models.MessageStatusRead, msg.Status)
	}
}

func TestSupportConversationScenario(t *testing.T) {
	hub, router, sessions, messages := newTestEnv()

	// User A joins: one waiting session.
	userA := newTestClient(hub, router, sessions, models.Identity{ID: "u1", Name: "A", Role: models.RoleUser})
	joinClient(t, userA)
	sessionID := userA.SessionID()
	require.NotEmpty(t, sessionID)

	session, err := sessions.GetByID(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionWaiting, session.Status)

	// A second join from the same user resumes the same session.
	secondTab := newTestClient(hub, router, sessions, models.Identity{ID: "u1", Name: "A", Role: models.RoleUser})
	joinClient(t, secondTab)
	assert.Equal(t, sessionID, secondTab.SessionID())
	assert.Equal(t, 1, sessions.creates)

	// Mentor M joins.
	mentorM := newTestClient(hub, router, sessions, models.Identity{ID: "m1", Name: "M", Role: models.RoleMentor})
	joinClient(t, mentorM)
	drainEvents(mentorM)
	drainEvents(secondTab)

	// A sends "Hello" to any mentor.
	router.HandleSend(userA, "Hello", ParseRecipient("mentor"), nil)

	ev := recvEvent(t, mentorM)
	require.Equal(t, EventReceive, ev.Type)
	var received ReceivePayload
	decodePayload(t, ev, &received)
	assert.Equal(t, "Hello", received.Message)
	assert.Equal(t, "A", received.Sender)
	assert.Equal(t, "u1", received.SenderID)

	ack := recvEvent(t, userA)
	require.Equal(t, EventSendAck, ack.Type)

	stored := messages.all()
	require.Len(t, stored, 1)
	assert.Equal(t, models.SenderTypeUser, stored[0].SenderType)
	assert.False(t, stored[0].IsRead)

	// M replies to A specifically.
	mentorM.handleEvent(&Event{
		Type: EventMentorReply,
		Payload: mustMarshal(t, MentorReplyPayload{
			Message:         "Hi A, how can I help?",
			RecipientUserID: "u1",
		}),
	})

	reply := recvEvent(t, userA)
	require.Equal(t, EventReceive, reply.Type)
	decodePayload(t, reply, &received)
	assert.Equal(t, "Hi A, how can I help?", received.Message)
	assert.Equal(t, "M", received.Sender)

	// M closes the session with a rating.
	rating := 5
	closed, err := sessions.Close(context.Background(), sessionID, &rating, "great support")
	require.NoError(t, err)
	assert.Equal(t, models.SessionClosed, closed.Status)
	require.NotNil(t, closed.EndTime)
	require.NotNil(t, closed.Rating)
	assert.Equal(t, 5, *closed.Rating)

	// Re-joining now starts a fresh session.
	rejoined := newTestClient(hub, router, sessions, models.Identity{ID: "u1", Name: "A", Role: models.RoleUser})
	joinClient(t, rejoined)
	assert.NotEqual(t, sessionID, rejoined.SessionID())
	assert.Equal(t, 2, sessions.creates)
}
