package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devboard/devboard/internal/access"
	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/internal/hub"
	"github.com/devboard/devboard/internal/repository"
	"github.com/devboard/devboard/pkg/pubsub"
)

// fakeProjectRepo backs the access checker with in-memory projects and
// memberships.
type fakeProjectRepo struct {
	projects map[uint]*domain.Project
	members  map[string]bool // "userID:projectID"
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{
		projects: make(map[uint]*domain.Project),
		members:  make(map[string]bool),
	}
}

func (r *fakeProjectRepo) addProject(id, ownerID uint) {
	r.projects[id] = &domain.Project{ID: id, OwnerID: ownerID}
}

func (r *fakeProjectRepo) addMember(userID, projectID uint) {
	r.members[fmt.Sprintf("%d:%d", userID, projectID)] = true
}

func (r *fakeProjectRepo) Create(ctx context.Context, project *domain.Project) error {
	project.ID = uint(len(r.projects) + 1)
	r.projects[project.ID] = project
	return nil
}

func (r *fakeProjectRepo) GetByID(ctx context.Context, id uint) (*domain.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	return p, nil
}

func (r *fakeProjectRepo) ListForUser(ctx context.Context, userID uint) ([]domain.Project, error) {
	return nil, nil
}

func (r *fakeProjectRepo) AddMember(ctx context.Context, member *domain.Member) error {
	member.ID = uint(len(r.members) + 1)
	r.addMember(member.UserID, member.ProjectID)
	return nil
}

func (r *fakeProjectRepo) FindMembership(ctx context.Context, userID, projectID uint) (*domain.Member, error) {
	if r.members[fmt.Sprintf("%d:%d", userID, projectID)] {
		return &domain.Member{UserID: userID, ProjectID: projectID, Role: domain.RoleMember}, nil
	}
	return nil, repository.ErrMembershipNotFound
}

func (r *fakeProjectRepo) ListMembers(ctx context.Context, projectID uint) ([]domain.Member, error) {
	return nil, nil
}

// fakeMessageRepo stores messages in append order.
type fakeMessageRepo struct {
	messages []domain.Message
	failNext bool
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	if r.failNext {
		r.failNext = false
		return fmt.Errorf("storage down")
	}
	msg.ID = uint(len(r.messages) + 1)
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) FindRecent(ctx context.Context, projectID uint, channelID *uint, limit int) ([]domain.Message, error) {
	var out []domain.Message
	for i := len(r.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := r.messages[i]
		if m.ProjectID != projectID {
			continue
		}
		if (m.ChannelID == nil) != (channelID == nil) {
			continue
		}
		if channelID != nil && *m.ChannelID != *channelID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

type realtimeFixture struct {
	hub      *hub.Hub
	projects *fakeProjectRepo
	messages *fakeMessageRepo
	svc      RealtimeService
}

func newRealtimeFixture(t *testing.T) *realtimeFixture {
	t.Helper()
	h := hub.New(hub.Config{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 65536,
	})
	go h.Run()

	projects := newFakeProjectRepo()
	messages := &fakeMessageRepo{}
	checker := access.NewChecker(projects, nil, 0)
	svc := NewRealtimeService(h, messages, checker, pubsub.NewMemoryPubSub(), nil, 30, 2)

	return &realtimeFixture{hub: h, projects: projects, messages: messages, svc: svc}
}

func (f *realtimeFixture) connect(t *testing.T, sid string, userID uint, email string) *hub.Client {
	t.Helper()
	session := domain.NewSession(sid)
	session.Authenticate(userID, email, "")
	c := &hub.Client{
		ID:      sid,
		Hub:     f.hub,
		Send:    make(chan []byte, 16),
		Session: session,
	}
	f.hub.Register(c)
	return c
}

func recvFrame(t *testing.T, c *hub.Client) map[string]json.RawMessage {
	t.Helper()
	select {
	case b := <-c.Send:
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(b, &m))
		return m
	case <-time.After(time.Second):
		t.Fatalf("client %s: no frame within 1s", c.ID)
		return nil
	}
}

func recvAck(t *testing.T, c *hub.Client) *domain.AckMessage {
	t.Helper()
	select {
	case b := <-c.Send:
		var ack domain.AckMessage
		require.NoError(t, json.Unmarshal(b, &ack))
		require.Equal(t, domain.MsgTypeAck, ack.Type)
		return &ack
	case <-time.After(time.Second):
		t.Fatalf("client %s: no ack within 1s", c.ID)
		return nil
	}
}

func assertNoFrame(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case b := <-c.Send:
		t.Fatalf("client %s: unexpected frame %s", c.ID, b)
	case <-time.After(50 * time.Millisecond):
	}
}

func frameType(t *testing.T, m map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	require.NoError(t, json.Unmarshal(m["type"], &typ))
	return typ
}

func TestJoinProjectRequiresProjectID(t *testing.T) {
	f := newRealtimeFixture(t)
	c := f.connect(t, "a", 1, "alice@example.com")

	f.svc.HandleJoinProject(context.Background(), c, &domain.JoinProjectMessage{Seq: 7})

	ack := recvAck(t, c)
	assert.Equal(t, int64(7), ack.Seq)
	assert.False(t, ack.OK)
	assert.Equal(t, "projectId required", ack.Error)
}

func TestJoinProjectForbidden(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 99)
	c := f.connect(t, "a", 1, "alice@example.com")

	f.svc.HandleJoinProject(context.Background(), c, &domain.JoinProjectMessage{Seq: 1, ProjectID: 1})
	ack := recvAck(t, c)
	assert.False(t, ack.OK)
	assert.Equal(t, "forbidden", ack.Error)
	assert.Equal(t, 0, f.hub.RoomSize("chat:1:0"))
	assert.Equal(t, 0, f.hub.RoomSize("project:1"))

	// A project that does not exist answers the same way.
	f.svc.HandleJoinProject(context.Background(), c, &domain.JoinProjectMessage{Seq: 2, ProjectID: 404})
	ack = recvAck(t, c)
	assert.False(t, ack.OK)
	assert.Equal(t, "forbidden", ack.Error)
}

func TestJoinProjectReturnsHistoryOldestFirst(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	for i := 0; i < 5; i++ {
		f.messages.Create(context.Background(), &domain.Message{
			ProjectID:      1,
			UserID:         1,
			Content:        fmt.Sprintf("msg-%d", i),
			AuthorUsername: "alice",
		})
	}
	c := f.connect(t, "a", 1, "alice@example.com")

	f.svc.HandleJoinProject(context.Background(), c, &domain.JoinProjectMessage{Seq: 3, ProjectID: 1})

	ack := recvAck(t, c)
	assert.True(t, ack.OK)
	require.Len(t, ack.History, 5)
	assert.Equal(t, "msg-0", ack.History[0].Content)
	assert.Equal(t, "msg-4", ack.History[4].Content)
	assert.Equal(t, "alice", ack.History[0].Username)
}

func TestJoinProjectHistoryLimit(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	for i := 0; i < 40; i++ {
		f.messages.Create(context.Background(), &domain.Message{ProjectID: 1, UserID: 1, Content: fmt.Sprintf("m%d", i)})
	}
	c := f.connect(t, "a", 1, "alice@example.com")

	f.svc.HandleJoinProject(context.Background(), c, &domain.JoinProjectMessage{Seq: 1, ProjectID: 1})

	ack := recvAck(t, c)
	require.Len(t, ack.History, 30)
	// The newest 30, oldest first.
	assert.Equal(t, "m10", ack.History[0].Content)
	assert.Equal(t, "m39", ack.History[29].Content)
}

func TestJoinProjectHistoryUsernameFallsBackToEmail(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	f.messages.Create(context.Background(), &domain.Message{
		ProjectID:   1,
		UserID:      2,
		Content:     "hi",
		AuthorEmail: "bob@example.com",
	})
	c := f.connect(t, "a", 1, "alice@example.com")

	f.svc.HandleJoinProject(context.Background(), c, &domain.JoinProjectMessage{Seq: 1, ProjectID: 1})

	ack := recvAck(t, c)
	require.Len(t, ack.History, 1)
	assert.Equal(t, "bob", ack.History[0].Username)
}

func TestJoinProjectSwitchesChannelRoom(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	c := f.connect(t, "a", 1, "alice@example.com")
	ctx := context.Background()

	f.svc.HandleJoinProject(ctx, c, &domain.JoinProjectMessage{Seq: 1, ProjectID: 1})
	recvAck(t, c)
	assert.Equal(t, 1, f.hub.RoomSize("chat:1:0"))

	ch := uint(5)
	f.svc.HandleJoinProject(ctx, c, &domain.JoinProjectMessage{Seq: 2, ProjectID: 1, ChannelID: &ch})
	recvAck(t, c)

	assert.Equal(t, 0, f.hub.RoomSize("chat:1:0"))
	assert.Equal(t, 1, f.hub.RoomSize("chat:1:5"))
	// The project room survives channel switches.
	assert.Equal(t, 1, f.hub.RoomSize("project:1"))
}

func TestSendMessageInvalidPayload(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	c := f.connect(t, "a", 1, "alice@example.com")
	ctx := context.Background()

	f.svc.HandleSendMessage(ctx, c, &domain.SendMessageMessage{Seq: 1, Content: "hi"})
	ack := recvAck(t, c)
	assert.Equal(t, "invalid payload", ack.Error)

	f.svc.HandleSendMessage(ctx, c, &domain.SendMessageMessage{Seq: 2, ProjectID: 1, Content: "   "})
	ack = recvAck(t, c)
	assert.Equal(t, "invalid payload", ack.Error)
}

func TestSendMessageForbidden(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 99)
	c := f.connect(t, "a", 1, "alice@example.com")

	f.svc.HandleSendMessage(context.Background(), c, &domain.SendMessageMessage{Seq: 1, ProjectID: 1, Content: "hi"})

	ack := recvAck(t, c)
	assert.False(t, ack.OK)
	assert.Equal(t, "forbidden", ack.Error)
	assert.Empty(t, f.messages.messages)
}

func TestNewMessageStaysInChannel(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	f.projects.addMember(2, 1)
	ctx := context.Background()

	general := f.connect(t, "a", 1, "alice@example.com")
	ch := uint(5)
	design := f.connect(t, "b", 2, "bob@example.com")
	f.svc.HandleJoinProject(ctx, general, &domain.JoinProjectMessage{Seq: 1, ProjectID: 1})
	recvAck(t, general)
	f.svc.HandleJoinProject(ctx, design, &domain.JoinProjectMessage{Seq: 1, ProjectID: 1, ChannelID: &ch})
	recvAck(t, design)

	f.svc.HandleSendMessage(ctx, design, &domain.SendMessageMessage{Seq: 2, ProjectID: 1, ChannelID: &ch, Content: "channel talk"})

	// Sender's ack and broadcast.
	recvFrame(t, design)
	recvFrame(t, design)
	// The general channel hears nothing.
	assertNoFrame(t, general)
}

func TestSendMessageAttachmentOnly(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	c := f.connect(t, "a", 1, "alice@example.com")

	f.svc.HandleSendMessage(context.Background(), c, &domain.SendMessageMessage{
		Seq:            1,
		ProjectID:      1,
		AttachmentURL:  "https://files.example.com/x.png",
		AttachmentMime: "image/png",
	})

	ack := recvAck(t, c)
	require.True(t, ack.OK)
	require.NotNil(t, ack.Data)
	require.NotNil(t, ack.Data.AttachmentURL)
	assert.Equal(t, "https://files.example.com/x.png", *ack.Data.AttachmentURL)
}

func TestSendMessagePersistsAndFansOut(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	f.projects.addMember(2, 1)
	ctx := context.Background()

	alice := f.connect(t, "a", 1, "alice@example.com")
	bob := f.connect(t, "b", 2, "bob@example.com")
	f.svc.HandleJoinProject(ctx, alice, &domain.JoinProjectMessage{Seq: 1, ProjectID: 1})
	recvAck(t, alice)
	f.svc.HandleJoinProject(ctx, bob, &domain.JoinProjectMessage{Seq: 1, ProjectID: 1})
	recvAck(t, bob)

	f.svc.HandleSendMessage(ctx, alice, &domain.SendMessageMessage{Seq: 2, ProjectID: 1, Content: "  hello  "})

	// The sender receives both the ack and the room broadcast; the order
	// between them is not fixed.
	var ack *domain.AckMessage
	var broadcast *domain.NewMessageMessage
	for i := 0; i < 2; i++ {
		frame := recvFrame(t, alice)
		switch frameType(t, frame) {
		case domain.MsgTypeAck:
			ack = &domain.AckMessage{}
			data, _ := json.Marshal(frame)
			require.NoError(t, json.Unmarshal(data, ack))
		case domain.MsgTypeNewMessage:
			broadcast = &domain.NewMessageMessage{}
			data, _ := json.Marshal(frame)
			require.NoError(t, json.Unmarshal(data, broadcast))
		}
	}
	require.NotNil(t, ack)
	require.NotNil(t, broadcast)

	assert.True(t, ack.OK)
	require.NotNil(t, ack.Data)
	assert.Equal(t, "hello", ack.Data.Content)
	assert.Equal(t, "alice", ack.Data.Username)
	assert.Equal(t, ack.Data.ID, broadcast.ID)

	// The other member sees the broadcast too.
	bobFrame := recvFrame(t, bob)
	assert.Equal(t, domain.MsgTypeNewMessage, frameType(t, bobFrame))

	require.Len(t, f.messages.messages, 1)
	assert.Equal(t, "hello", f.messages.messages[0].Content)
}

func TestSendMessageStorageFailureKeepsConnection(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	c := f.connect(t, "a", 1, "alice@example.com")
	ctx := context.Background()

	f.messages.failNext = true
	f.svc.HandleSendMessage(ctx, c, &domain.SendMessageMessage{Seq: 1, ProjectID: 1, Content: "hi"})
	ack := recvAck(t, c)
	assert.False(t, ack.OK)
	assert.Equal(t, "internal error", ack.Error)

	// The next send succeeds on the same connection.
	f.svc.HandleSendMessage(ctx, c, &domain.SendMessageMessage{Seq: 2, ProjectID: 1, Content: "hi"})
	ack = recvAck(t, c)
	assert.True(t, ack.OK)
}

func TestCallJoinAnnouncesPeer(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	f.projects.addMember(2, 1)
	ctx := context.Background()

	alice := f.connect(t, "a", 1, "alice@example.com")
	bob := f.connect(t, "b", 2, "bob@example.com")

	f.svc.HandleCallJoin(ctx, alice, &domain.CallJoinMessage{ProjectID: 1})
	assertNoFrame(t, alice) // nobody else to announce to

	f.svc.HandleCallJoin(ctx, bob, &domain.CallJoinMessage{ProjectID: 1})

	frame := recvFrame(t, alice)
	assert.Equal(t, domain.MsgTypeUserJoined, frameType(t, frame))
	var sid string
	require.NoError(t, json.Unmarshal(frame["sid"], &sid))
	assert.Equal(t, "b", sid)

	// Joiners do not hear their own announcement.
	assertNoFrame(t, bob)
}

func TestCallJoinForbidden(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 99)
	c := f.connect(t, "a", 1, "alice@example.com")

	f.svc.HandleCallJoin(context.Background(), c, &domain.CallJoinMessage{ProjectID: 1})

	frame := recvFrame(t, c)
	assert.Equal(t, domain.MsgTypeError, frameType(t, frame))
	var code string
	require.NoError(t, json.Unmarshal(frame["code"], &code))
	assert.Equal(t, domain.ErrCodeForbidden, code)
	assert.Equal(t, 0, f.hub.RoomSize("call:1"))
}

func TestCallRoomCapacity(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	f.projects.addMember(2, 1)
	f.projects.addMember(3, 1)
	ctx := context.Background()

	a := f.connect(t, "a", 1, "alice@example.com")
	b := f.connect(t, "b", 2, "bob@example.com")
	c := f.connect(t, "c", 3, "carol@example.com")

	f.svc.HandleCallJoin(ctx, a, &domain.CallJoinMessage{ProjectID: 1})
	f.svc.HandleCallJoin(ctx, b, &domain.CallJoinMessage{ProjectID: 1})
	recvFrame(t, a) // user-joined for b

	f.svc.HandleCallJoin(ctx, c, &domain.CallJoinMessage{ProjectID: 1})

	frame := recvFrame(t, c)
	assert.Equal(t, domain.MsgTypeError, frameType(t, frame))
	var code string
	require.NoError(t, json.Unmarshal(frame["code"], &code))
	assert.Equal(t, domain.ErrCodeCallFull, code)

	assert.Equal(t, 2, f.hub.RoomSize("call:1"))
	assertNoFrame(t, a)
	assertNoFrame(t, b)
}

func TestCallSignalTargeted(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	f.projects.addMember(2, 1)
	ctx := context.Background()

	a := f.connect(t, "a", 1, "alice@example.com")
	b := f.connect(t, "b", 2, "bob@example.com")
	f.svc.HandleCallJoin(ctx, a, &domain.CallJoinMessage{ProjectID: 1})
	f.svc.HandleCallJoin(ctx, b, &domain.CallJoinMessage{ProjectID: 1})
	recvFrame(t, a)

	payload := json.RawMessage(`{"sdp":"offer"}`)
	f.svc.HandleCallSignal(ctx, a, &domain.CallSignalMessage{ProjectID: 1, TargetSID: "b", Data: payload})

	frame := recvFrame(t, b)
	assert.Equal(t, domain.MsgTypeCallSignal, frameType(t, frame))
	var from string
	require.NoError(t, json.Unmarshal(frame["from"], &from))
	assert.Equal(t, "a", from)
	assert.JSONEq(t, string(payload), string(frame["data"]))

	assertNoFrame(t, a)
}

func TestCallSignalBroadcast(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	f.projects.addMember(2, 1)
	ctx := context.Background()

	a := f.connect(t, "a", 1, "alice@example.com")
	b := f.connect(t, "b", 2, "bob@example.com")
	f.svc.HandleCallJoin(ctx, a, &domain.CallJoinMessage{ProjectID: 1})
	f.svc.HandleCallJoin(ctx, b, &domain.CallJoinMessage{ProjectID: 1})
	recvFrame(t, a)

	f.svc.HandleCallSignal(ctx, a, &domain.CallSignalMessage{ProjectID: 1, Data: json.RawMessage(`{"candidate":"x"}`)})

	frame := recvFrame(t, b)
	assert.Equal(t, domain.MsgTypeCallSignal, frameType(t, frame))
	assertNoFrame(t, a)
}

func TestCallSignalBeforeJoinDropped(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	ctx := context.Background()

	a := f.connect(t, "a", 1, "alice@example.com")
	f.svc.HandleCallSignal(ctx, a, &domain.CallSignalMessage{ProjectID: 1, Data: json.RawMessage(`{}`)})
	assertNoFrame(t, a)
}

func TestCallLeaveAnnouncesDeparture(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	f.projects.addMember(2, 1)
	ctx := context.Background()

	a := f.connect(t, "a", 1, "alice@example.com")
	b := f.connect(t, "b", 2, "bob@example.com")
	f.svc.HandleCallJoin(ctx, a, &domain.CallJoinMessage{ProjectID: 1})
	f.svc.HandleCallJoin(ctx, b, &domain.CallJoinMessage{ProjectID: 1})
	recvFrame(t, a)

	f.svc.HandleCallLeave(ctx, b, &domain.CallLeaveMessage{ProjectID: 1})

	frame := recvFrame(t, a)
	assert.Equal(t, domain.MsgTypeUserLeft, frameType(t, frame))
	var sid string
	require.NoError(t, json.Unmarshal(frame["sid"], &sid))
	assert.Equal(t, "b", sid)

	assert.Equal(t, 1, f.hub.RoomSize("call:1"))
	_, inCall := b.Session.CallRoom(1)
	assert.False(t, inCall)

	// Leaving twice is a no-op.
	f.svc.HandleCallLeave(ctx, b, &domain.CallLeaveMessage{ProjectID: 1})
	assertNoFrame(t, a)
}

func TestDisconnectCleansUpCalls(t *testing.T) {
	f := newRealtimeFixture(t)
	f.projects.addProject(1, 1)
	f.projects.addMember(2, 1)
	ctx := context.Background()

	a := f.connect(t, "a", 1, "alice@example.com")
	b := f.connect(t, "b", 2, "bob@example.com")
	f.svc.HandleCallJoin(ctx, a, &domain.CallJoinMessage{ProjectID: 1})
	f.svc.HandleCallJoin(ctx, b, &domain.CallJoinMessage{ProjectID: 1})
	recvFrame(t, a)

	f.svc.HandleDisconnect(b)

	frame := recvFrame(t, a)
	assert.Equal(t, domain.MsgTypeUserLeft, frameType(t, frame))
	assert.Empty(t, b.Session.ActiveCallRooms())
}

// Two service instances sharing one bus deliver each other's broadcasts
// without re-delivering their own.
func TestBroadcastCrossesInstances(t *testing.T) {
	bus := pubsub.NewMemoryPubSub()
	projects := newFakeProjectRepo()
	projects.addProject(1, 1)
	projects.addMember(2, 1)
	checker := access.NewChecker(projects, nil, 0)
	ctx := context.Background()

	newInstance := func() (*hub.Hub, RealtimeService) {
		h := hub.New(hub.Config{PingInterval: 30 * time.Second, PongWait: 60 * time.Second, WriteWait: 10 * time.Second, MaxMessageSize: 65536})
		go h.Run()
		svc := NewRealtimeService(h, &fakeMessageRepo{}, checker, bus, nil, 30, 2)
		require.NoError(t, svc.Start(ctx))
		return h, svc
	}

	hubA, svcA := newInstance()
	hubB, svcB := newInstance()
	defer svcA.Stop()
	defer svcB.Stop()

	alice := &hub.Client{ID: "a", Hub: hubA, Send: make(chan []byte, 16), Session: domain.NewSession("a")}
	alice.Session.Authenticate(1, "alice@example.com", "")
	hubA.Register(alice)
	bob := &hub.Client{ID: "b", Hub: hubB, Send: make(chan []byte, 16), Session: domain.NewSession("b")}
	bob.Session.Authenticate(2, "bob@example.com", "")
	hubB.Register(bob)

	svcA.HandleJoinProject(ctx, alice, &domain.JoinProjectMessage{Seq: 1, ProjectID: 1})
	recvAck(t, alice)
	svcB.HandleJoinProject(ctx, bob, &domain.JoinProjectMessage{Seq: 1, ProjectID: 1})
	recvAck(t, bob)

	svcA.HandleSendMessage(ctx, alice, &domain.SendMessageMessage{Seq: 2, ProjectID: 1, Content: "hi"})

	// Bob's instance never saw the send but delivers the broadcast.
	frame := recvFrame(t, bob)
	assert.Equal(t, domain.MsgTypeNewMessage, frameType(t, frame))
}
