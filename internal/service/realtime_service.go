package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devboard/devboard/internal/access"
	"github.com/devboard/devboard/internal/audit"
	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/internal/hub"
	"github.com/devboard/devboard/internal/kafka"
	"github.com/devboard/devboard/internal/repository"
	pkglog "github.com/devboard/devboard/pkg/log"
	"github.com/devboard/devboard/pkg/pubsub"
)

// Backplane event types and channel prefixes. Room broadcasts fan out to
// a room on every instance; client sends are delivered only by the
// instance that holds the target connection.
const (
	eventRoomBroadcast = "room_broadcast"
	eventClientSend    = "client_send"

	roomChannelPrefix   = "rooms:"
	clientChannelPrefix = "clients:"
)

type realtimeService struct {
	hub      *hub.Hub
	messages repository.MessageRepository
	access   *access.Checker
	bus      pubsub.PubSub
	producer kafka.MessageEventProducer // nil when archiving is disabled

	historyLimit int
	maxCallPeers int
	instanceID   string

	cancel context.CancelFunc
}

// NewRealtimeService wires the WebSocket event handlers. producer may be
// nil; bus must not be.
func NewRealtimeService(
	h *hub.Hub,
	messages repository.MessageRepository,
	checker *access.Checker,
	bus pubsub.PubSub,
	producer kafka.MessageEventProducer,
	historyLimit int,
	maxCallPeers int,
) RealtimeService {
	if historyLimit <= 0 {
		historyLimit = 30
	}
	if maxCallPeers <= 0 {
		maxCallPeers = 2
	}
	return &realtimeService{
		hub:          h,
		messages:     messages,
		access:       checker,
		bus:          bus,
		producer:     producer,
		historyLimit: historyLimit,
		maxCallPeers: maxCallPeers,
		instanceID:   uuid.New().String(),
	}
}

// Start subscribes to the backplane and re-broadcasts events that
// originated on other instances.
func (s *realtimeService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	roomCh, err := s.bus.SubscribePattern(ctx, roomChannelPrefix+"*")
	if err != nil {
		cancel()
		return err
	}
	clientCh, err := s.bus.SubscribePattern(ctx, clientChannelPrefix+"*")
	if err != nil {
		cancel()
		return err
	}

	go s.consume(ctx, roomCh, clientCh)
	return nil
}

func (s *realtimeService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *realtimeService) consume(ctx context.Context, roomCh, clientCh <-chan *pubsub.Event) {
	l := pkglog.L()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-roomCh:
			if !ok {
				return
			}
			if evt.Origin == s.instanceID {
				continue
			}
			if err := s.hub.BroadcastToRoom(evt.Room, evt.Payload, ""); err != nil {
				l.Warn().Err(err).Str(pkglog.FieldRoom, evt.Room).Msg("backplane rebroadcast failed")
			}
		case evt, ok := <-clientCh:
			if !ok {
				return
			}
			if evt.Origin == s.instanceID {
				continue
			}
			// Room holds the target connection id; instances that do not
			// host it drop the send silently.
			if err := s.hub.SendToClient(evt.Room, evt.Payload); err != nil {
				l.Warn().Err(err).Str(pkglog.FieldSID, evt.Room).Msg("backplane client send failed")
			}
		}
	}
}

// BroadcastRoom delivers a frame to the local room and publishes it on
// the backplane for the other instances.
func (s *realtimeService) BroadcastRoom(ctx context.Context, room string, frame interface{}, exclude string) {
	l := pkglog.L()
	if err := s.hub.BroadcastToRoom(room, frame, exclude); err != nil {
		l.Error().Err(err).Str(pkglog.FieldRoom, room).Msg("room broadcast failed")
		return
	}

	evt, err := pubsub.NewEvent(eventRoomBroadcast, room, s.instanceID, frame)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldRoom, room).Msg("backplane event marshal failed")
		return
	}
	if err := s.bus.Publish(ctx, roomChannelPrefix+room, evt); err != nil {
		l.Warn().Err(err).Str(pkglog.FieldRoom, room).Msg("backplane publish failed")
	}
}

// sendToSID delivers a frame to one connection, locally when it is here
// and over the backplane otherwise.
func (s *realtimeService) sendToSID(ctx context.Context, sid string, frame interface{}) {
	l := pkglog.L()
	if err := s.hub.SendToClient(sid, frame); err != nil {
		l.Error().Err(err).Str(pkglog.FieldSID, sid).Msg("client send failed")
		return
	}

	evt, err := pubsub.NewEvent(eventClientSend, sid, s.instanceID, frame)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldSID, sid).Msg("backplane event marshal failed")
		return
	}
	if err := s.bus.Publish(ctx, clientChannelPrefix+sid, evt); err != nil {
		l.Warn().Err(err).Str(pkglog.FieldSID, sid).Msg("backplane publish failed")
	}
}

// HandleJoinProject checks access, moves the connection into the
// project's chat room and replies with recent history, oldest first.
func (s *realtimeService) HandleJoinProject(ctx context.Context, c *hub.Client, msg *domain.JoinProjectMessage) {
	if msg.ProjectID == 0 {
		c.SendMessage(domain.NewErrorAck(msg.Seq, domain.ErrProjectIDRequired))
		return
	}

	allowed, err := s.access.CanAccess(ctx, c.Session.UserID(), msg.ProjectID)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).
			Uint(pkglog.FieldProjectID, msg.ProjectID).
			Msg("access check failed")
		c.SendMessage(domain.NewErrorAck(msg.Seq, domain.ErrInternal))
		return
	}
	if !allowed {
		c.SendMessage(domain.NewErrorAck(msg.Seq, domain.ErrForbidden))
		return
	}

	chatRoom := domain.ChatRoom(msg.ProjectID, msg.ChannelID)

	// Switching channels within a project leaves the old chat room so a
	// connection never receives two channels of the same project at once.
	if prev, ok := c.Session.ChatRoom(msg.ProjectID); ok && prev != chatRoom {
		s.hub.LeaveRoom(c, prev)
	}
	s.hub.JoinRoom(c, chatRoom)
	s.hub.JoinRoom(c, domain.ProjectRoom(msg.ProjectID))
	c.Session.SetChatRoom(msg.ProjectID, chatRoom)

	recent, err := s.messages.FindRecent(ctx, msg.ProjectID, msg.ChannelID, s.historyLimit)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).
			Uint(pkglog.FieldProjectID, msg.ProjectID).
			Msg("history load failed")
		c.SendMessage(domain.NewErrorAck(msg.Seq, domain.ErrInternal))
		return
	}

	// Storage returns newest first; clients render oldest first.
	history := make([]domain.MessageDTO, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		history = append(history, toMessageDTO(&recent[i]))
	}

	c.SendMessage(&domain.AckMessage{
		Type:    domain.MsgTypeAck,
		Seq:     msg.Seq,
		OK:      true,
		History: history,
	})
}

// HandleSendMessage persists a chat message, fans it out to the chat
// room, and acks with the stored copy.
func (s *realtimeService) HandleSendMessage(ctx context.Context, c *hub.Client, msg *domain.SendMessageMessage) {
	content := strings.TrimSpace(msg.Content)
	if msg.ProjectID == 0 || (content == "" && msg.AttachmentURL == "") {
		c.SendMessage(domain.NewErrorAck(msg.Seq, domain.ErrInvalidPayload))
		return
	}

	allowed, err := s.access.CanAccess(ctx, c.Session.UserID(), msg.ProjectID)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).
			Uint(pkglog.FieldProjectID, msg.ProjectID).
			Msg("access check failed")
		c.SendMessage(domain.NewErrorAck(msg.Seq, domain.ErrInternal))
		return
	}
	if !allowed {
		c.SendMessage(domain.NewErrorAck(msg.Seq, domain.ErrForbidden))
		return
	}

	m := &domain.Message{
		ProjectID: msg.ProjectID,
		ChannelID: msg.ChannelID,
		UserID:    c.Session.UserID(),
		Content:   content,
	}
	if msg.AttachmentURL != "" {
		m.AttachmentURL = &msg.AttachmentURL
	}
	if msg.AttachmentMime != "" {
		m.AttachmentMime = &msg.AttachmentMime
	}

	if err := s.messages.Create(ctx, m); err != nil {
		pkglog.Ctx(ctx).Error().Err(err).
			Uint(pkglog.FieldProjectID, msg.ProjectID).
			Msg("message persist failed")
		c.SendMessage(domain.NewErrorAck(msg.Seq, domain.ErrInternal))
		return
	}

	dto := domain.MessageDTO{
		ID:             m.ID,
		Content:        m.Content,
		UserID:         m.UserID,
		Username:       emailLocalPart(c.Session.Email()),
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
		AttachmentURL:  m.AttachmentURL,
		AttachmentMime: m.AttachmentMime,
	}

	room := domain.ChatRoom(msg.ProjectID, msg.ChannelID)
	s.BroadcastRoom(ctx, room, &domain.NewMessageMessage{
		Type:       domain.MsgTypeNewMessage,
		MessageDTO: dto,
	}, "")

	if s.producer != nil {
		if err := s.producer.ProduceMessageCreated(ctx, m); err != nil {
			// Archive delivery is best effort; the message is already
			// stored and delivered.
			pkglog.Ctx(ctx).Warn().Err(err).
				Uint(pkglog.FieldProjectID, msg.ProjectID).
				Msg("archive produce failed")
		}
	}

	audit.Log(ctx, audit.ActionMessageSend, c.Session.UserID(), room)

	c.SendMessage(&domain.AckMessage{
		Type: domain.MsgTypeAck,
		Seq:  msg.Seq,
		OK:   true,
		Data: &dto,
	})
}

// HandleCallJoin checks access, enforces the two-party cap, and
// announces the new peer to the existing occupant.
func (s *realtimeService) HandleCallJoin(ctx context.Context, c *hub.Client, msg *domain.CallJoinMessage) {
	if msg.ProjectID == 0 {
		return
	}

	allowed, err := s.access.CanAccess(ctx, c.Session.UserID(), msg.ProjectID)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).
			Uint(pkglog.FieldProjectID, msg.ProjectID).
			Msg("access check failed")
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternal, domain.ErrInternal))
		return
	}
	if !allowed {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeForbidden, domain.ErrForbidden))
		return
	}

	room := domain.CallRoom(msg.ProjectID)

	if _, ok := c.Session.CallRoom(msg.ProjectID); ok {
		// Already in this call; nothing to announce.
		return
	}
	if s.hub.RoomSize(room) >= s.maxCallPeers {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeCallFull, "call is full"))
		return
	}

	s.hub.JoinRoom(c, room)
	c.Session.SetCallRoom(msg.ProjectID, room)

	s.BroadcastRoom(ctx, room, &domain.CallPeerMessage{
		Type: domain.MsgTypeUserJoined,
		SID:  c.ID,
	}, c.ID)

	audit.Log(ctx, audit.ActionCallJoin, c.Session.UserID(), room)
}

// HandleCallSignal relays an opaque payload to the target connection,
// or to every other occupant of the call room when no target is named.
func (s *realtimeService) HandleCallSignal(ctx context.Context, c *hub.Client, msg *domain.CallSignalMessage) {
	if msg.ProjectID == 0 || len(msg.Data) == 0 {
		return
	}

	room, ok := c.Session.CallRoom(msg.ProjectID)
	if !ok {
		// Signaling before call:join is a client bug; drop it.
		return
	}

	relay := &domain.CallSignalRelay{
		Type: domain.MsgTypeCallSignal,
		From: c.ID,
		Data: msg.Data,
	}

	if msg.TargetSID != "" {
		s.sendToSID(ctx, msg.TargetSID, relay)
		return
	}
	s.BroadcastRoom(ctx, room, relay, c.ID)
}

// HandleCallLeave exits the call room and announces the departure.
func (s *realtimeService) HandleCallLeave(ctx context.Context, c *hub.Client, msg *domain.CallLeaveMessage) {
	if msg.ProjectID == 0 {
		return
	}

	room, ok := c.Session.CallRoom(msg.ProjectID)
	if !ok {
		return
	}

	s.hub.LeaveRoom(c, room)
	c.Session.ClearCallRoom(msg.ProjectID)

	s.BroadcastRoom(ctx, room, &domain.CallPeerMessage{
		Type: domain.MsgTypeUserLeft,
		SID:  c.ID,
	}, c.ID)

	audit.Log(ctx, audit.ActionCallLeave, c.Session.UserID(), room)
}

// HandleDisconnect announces the departure to every call room the
// connection still holds. Chat rooms need no farewell.
func (s *realtimeService) HandleDisconnect(c *hub.Client) {
	ctx := context.Background()
	for projectID, room := range c.Session.ActiveCallRooms() {
		s.BroadcastRoom(ctx, room, &domain.CallPeerMessage{
			Type: domain.MsgTypeUserLeft,
			SID:  c.ID,
		}, c.ID)
		c.Session.ClearCallRoom(projectID)
		audit.Log(ctx, audit.ActionCallLeave, c.Session.UserID(), room)
	}
}

func toMessageDTO(m *domain.Message) domain.MessageDTO {
	username := m.AuthorUsername
	if username == "" {
		username = emailLocalPart(m.AuthorEmail)
	}
	return domain.MessageDTO{
		ID:             m.ID,
		Content:        m.Content,
		UserID:         m.UserID,
		Username:       username,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
		AttachmentURL:  m.AttachmentURL,
		AttachmentMime: m.AttachmentMime,
	}
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
