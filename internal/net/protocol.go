package net

import (
	"errors"

	"SharedBoard/internal/state"
)

// MsgType discriminates wire messages.
type MsgType string

// Peer -> coordinator.
const (
	MsgLogin           MsgType = "login"
	MsgUsernameTaken   MsgType = "username_taken"
	MsgMembers         MsgType = "members"
	MsgQuit            MsgType = "quit"
	MsgKick            MsgType = "kick"
	MsgEndSession      MsgType = "end_session"
	MsgDraw            MsgType = "draw"
	MsgChat            MsgType = "chat"
	MsgRequestSnapshot MsgType = "request_snapshot"
	MsgPushSnapshot    MsgType = "push_snapshot"
)

// Coordinator -> peer.
const (
	MsgSetRole        MsgType = "set_role"
	MsgApproveJoin    MsgType = "approve_join"
	MsgSetAccess      MsgType = "set_access"
	MsgSyncMembers    MsgType = "sync_members"
	MsgSyncDraw       MsgType = "sync_draw"
	MsgSyncChat       MsgType = "sync_chat"
	MsgSyncHistory    MsgType = "sync_chat_history"
	MsgOverrideCanvas MsgType = "override_canvas"
	MsgForceQuit      MsgType = "force_quit"
	MsgSnapshot       MsgType = "snapshot"
)

// Both directions.
const (
	MsgClearCanvas MsgType = "clear_canvas"
	MsgReply       MsgType = "reply"
)

// Message is the flat envelope for every frame on the wire. A message with an
// ID expects exactly one MsgReply carrying the same ID.
type Message struct {
	Type    MsgType          `json:"type"`
	ID      string           `json:"id,omitempty"`
	Code    string           `json:"code,omitempty"`
	Error   string           `json:"error,omitempty"`
	Name    string           `json:"name,omitempty"`
	Role    state.Role       `json:"role,omitempty"`
	Create  bool             `json:"create,omitempty"`
	OK      bool             `json:"ok,omitempty"`
	Members []state.PeerInfo `json:"members,omitempty"`
	Event   *state.DrawEvent `json:"event,omitempty"`
	Text    string           `json:"text,omitempty"`
	Lines   []string         `json:"lines,omitempty"`
	Image   []byte           `json:"image,omitempty"`
}

var (
	ErrConnection      = errors.New("net: coordinator unreachable")
	ErrNameConflict    = errors.New("net: name already taken")
	ErrAccessDenied    = errors.New("net: access denied")
	ErrNotOwner        = errors.New("net: only the owner may do that")
	ErrNotMember       = errors.New("net: not a session member")
	ErrSessionExists   = errors.New("net: session already has an owner")
	ErrNoSession       = errors.New("net: no active session")
	ErrInvalidName     = errors.New("net: invalid name")
	ErrBadRequest      = errors.New("net: bad request")
	ErrClosed          = errors.New("net: connection closed")
	ErrDeliveryTimeout = errors.New("net: delivery timed out")
)

var errorCodes = []struct {
	code string
	err  error
}{
	{"connection", ErrConnection},
	{"name_conflict", ErrNameConflict},
	{"access_denied", ErrAccessDenied},
	{"not_owner", ErrNotOwner},
	{"not_member", ErrNotMember},
	{"session_exists", ErrSessionExists},
	{"no_session", ErrNoSession},
	{"invalid_name", ErrInvalidName},
	{"bad_request", ErrBadRequest},
	{"closed", ErrClosed},
	{"timeout", ErrDeliveryTimeout},
}

func codeOf(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}

// errorFromReply maps a reply back onto the sentinel it was built from.
func errorFromReply(msg Message) error {
	if msg.Code == "" && msg.Error == "" {
		return nil
	}
	for _, ec := range errorCodes {
		if ec.code == msg.Code {
			return ec.err
		}
	}
	return errors.New(msg.Error)
}

// replyTo builds the reply for req, carrying err when non-nil.
func replyTo(req Message, resp Message, err error) Message {
	resp.Type = MsgReply
	resp.ID = req.ID
	if err != nil {
		resp.Code = codeOf(err)
		resp.Error = err.Error()
	}
	return resp
}
