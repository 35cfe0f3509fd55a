package domain

import (
	"encoding/json"
	"fmt"
)

// WebSocket message types from client.
const (
	MsgTypeJoinProject = "join_project"
	MsgTypeSendMessage = "message:send"
	MsgTypeCallJoin    = "call:join"
	MsgTypeCallSignal  = "call:signal"
	MsgTypeCallLeave   = "call:leave"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeAck         = "ack"
	MsgTypeNewMessage  = "message:new"
	MsgTypeTaskCreated = "task:created"
	MsgTypeMemberAdded = "member:added"
	MsgTypeUserJoined  = "call:user-joined"
	MsgTypeUserLeft    = "call:user-left"
	MsgTypeError       = "error"
	MsgTypePong        = "pong"
)

// Room naming. The three room kinds share one broadcast mechanism and are
// distinguished only by these prefixes.

// ProjectRoom names the project-wide room used for non-chat events.
func ProjectRoom(projectID uint) string {
	return fmt.Sprintf("project:%d", projectID)
}

// ChatRoom names the chat room for a (project, channel) pair.
// A nil channel id selects the general channel.
func ChatRoom(projectID uint, channelID *uint) string {
	var ch uint
	if channelID != nil {
		ch = *channelID
	}
	return fmt.Sprintf("chat:%d:%d", projectID, ch)
}

// CallRoom names the call room for a project.
func CallRoom(projectID uint) string {
	return fmt.Sprintf("call:%d", projectID)
}

// BaseMessage is the envelope all client frames share.
type BaseMessage struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client -> Server messages

// JoinProjectMessage joins a project's chat room and returns recent history.
type JoinProjectMessage struct {
	Type      string `json:"type"`
	Seq       int64  `json:"seq"`
	ProjectID uint   `json:"projectId"`
	ChannelID *uint  `json:"channelId,omitempty"`
}

// SendMessageMessage persists and fans out a chat message.
type SendMessageMessage struct {
	Type           string `json:"type"`
	Seq            int64  `json:"seq"`
	ProjectID      uint   `json:"projectId"`
	ChannelID      *uint  `json:"channelId,omitempty"`
	Content        string `json:"content,omitempty"`
	AttachmentURL  string `json:"attachmentUrl,omitempty"`
	AttachmentMime string `json:"attachmentMime,omitempty"`
}

// CallJoinMessage enters a project's call room.
type CallJoinMessage struct {
	Type      string `json:"type"`
	ProjectID uint   `json:"projectId"`
}

// CallSignalMessage relays an opaque WebRTC payload. With TargetSID it is
// delivered to that connection only; without it, to every other occupant
// of the project's call room.
type CallSignalMessage struct {
	Type      string          `json:"type"`
	ProjectID uint            `json:"projectId"`
	TargetSID string          `json:"targetSid,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// CallLeaveMessage exits a project's call room.
type CallLeaveMessage struct {
	Type      string `json:"type"`
	ProjectID uint   `json:"projectId"`
}

// Server -> Client messages

// MessageDTO is the delivery shape for one chat message, used both in
// history replays and message:new broadcasts. Clients dedupe on ID.
type MessageDTO struct {
	ID             uint    `json:"id"`
	Content        string  `json:"content"`
	UserID         uint    `json:"userId"`
	Username       string  `json:"username"`
	CreatedAt      string  `json:"createdAt"`
	AttachmentURL  *string `json:"attachmentUrl"`
	AttachmentMime *string `json:"attachmentMime"`
}

// AckMessage answers a seq-carrying client request.
type AckMessage struct {
	Type    string       `json:"type"`
	Seq     int64        `json:"seq"`
	OK      bool         `json:"ok"`
	Error   string       `json:"error,omitempty"`
	History []MessageDTO `json:"history,omitempty"`
	Data    *MessageDTO  `json:"data,omitempty"`
}

// NewErrorAck builds a failed ack.
func NewErrorAck(seq int64, reason string) *AckMessage {
	return &AckMessage{Type: MsgTypeAck, Seq: seq, OK: false, Error: reason}
}

// NewMessageMessage is the message:new broadcast frame.
type NewMessageMessage struct {
	Type string `json:"type"`
	MessageDTO
}

// TaskCreatedMessage is broadcast to the project room when a task is created.
type TaskCreatedMessage struct {
	Type      string `json:"type"`
	ProjectID uint   `json:"projectId"`
	TaskID    uint   `json:"taskId"`
	Title     string `json:"title"`
}

// MemberAddedMessage is broadcast to the project room when a member is added.
type MemberAddedMessage struct {
	Type      string `json:"type"`
	ProjectID uint   `json:"projectId"`
	UserID    uint   `json:"userId"`
	Username  string `json:"username"`
}

// CallPeerMessage notifies call-room occupants of a peer joining or leaving.
type CallPeerMessage struct {
	Type string `json:"type"`
	SID  string `json:"sid"`
}

// CallSignalRelay is the server-to-target form of call:signal, tagged
// with the sender's connection id.
type CallSignalRelay struct {
	Type string          `json:"type"`
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

// ErrorMessage is a fire-and-forget error frame for ack-less events.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeForbidden  = "FORBIDDEN"
	ErrCodeCallFull   = "CALL_FULL"
	ErrCodeInternal   = "INTERNAL_ERROR"
)

// Ack error reasons surfaced verbatim in the client UI.
const (
	ErrProjectIDRequired = "projectId required"
	ErrForbidden         = "forbidden"
	ErrInvalidPayload    = "invalid payload"
	ErrInternal          = "internal error"
)

// NewErrorMessage creates a new error frame.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{Type: MsgTypeError, Code: code, Message: message}
}
