package internal

import (
	"encoding/json"
	"time"
)

// Frame is the envelope carried over the websocket in both directions.
// Commands mirror the broker protocol: the client sends "subscribe",
// "unsubscribe" and "send"; the broker delivers "message" frames tagged
// with the topic they belong to.
type Frame struct {
	Command     string          `json:"command"`
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body,omitempty"`
}

const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	frameSend        = "send"
	frameMessage     = "message"
)

// topic builders, one topic per room per concern
func topicParticipants(roomID string) string { return "/topic/participants/" + roomID }
func topicVideo(roomID string) string        { return "/topic/video/" + roomID }
func topicChat(roomID string) string         { return "/topic/" + roomID }
func topicTyping(roomID string) string       { return "/topic/" + roomID + "/typing" }
func topicNotifications(roomID string) string {
	return "/topic/" + roomID + "/notifications"
}

// outbound command destinations
func destJoin() string  { return "/app/join" }
func destLeave() string { return "/app/leave" }
func destVideo(roomID string) string {
	return "/app/video/" + roomID
}
func destTyping(roomID string) string {
	return "/app/" + roomID + "/typing"
}
func destRemoveParticipant(roomID string) string {
	return "/app/remove-participant/" + roomID
}

// ControlType tags a VideoControl variant.
type ControlType string

const (
	ControlUpdateURL ControlType = "UPDATE_URL"
	ControlPlay      ControlType = "PLAY"
	ControlPause     ControlType = "PAUSE"
	ControlSeek      ControlType = "SEEK"
)

// VideoControl is a playback state change broadcast on the video topic.
// VideoURL is set for UPDATE_URL, Timestamp (seconds) for SEEK.
type VideoControl struct {
	Type      ControlType `json:"type"`
	RoomID    string      `json:"roomId,omitempty"`
	VideoURL  string      `json:"videoUrl,omitempty"`
	Timestamp float64     `json:"timestamp,omitempty"`
}

// ChatMessage is one entry of the room chat stream. Username is empty
// for system notifications. ParentMessage carries the quoted snippet the
// server denormalized at send time; it is never re-resolved, so quotes
// of deleted messages stay frozen.
type ChatMessage struct {
	ID            string     `json:"id"`
	Username      string     `json:"username,omitempty"`
	Content       string     `json:"encryptedContent"`
	ParentMessage *ParentRef `json:"parentMessage,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// ParentRef references the message a chat message replies to. Only ID is
// sent on the wire when posting; the server fills in the rest.
type ParentRef struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Content  string `json:"encryptedContent,omitempty"`
}

// IsNotification reports whether the message is a system notification
// rather than a user message.
func (m ChatMessage) IsNotification() bool { return m.Username == "" }

// TypingSignal is the ephemeral typing indicator payload. Latest wins.
type TypingSignal struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// presenceEvent announces this client joining or leaving a room.
type presenceEvent struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
	Type     string `json:"type"`
}

const (
	presenceJoin  = "JOIN"
	presenceLeave = "LEAVE"
)

// removeCommand asks the broker to drop a participant from the room.
type removeCommand struct {
	Username string `json:"username"`
}

// Room is the REST room metadata snapshot.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	HasPassword bool   `json:"hasPassword"`
	Description string `json:"description,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// VideoState is the authoritative playback snapshot fetched over REST
// after every (re)connect.
type VideoState struct {
	URL      string  `json:"videoUrl"`
	Position float64 `json:"position"`
	Playing  bool    `json:"playing"`
}
