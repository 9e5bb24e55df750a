package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	httpTimeout = 5 * time.Second

	errUnauthorized = errors.New("unauthorized")

	// ErrWrongPassword is returned by CheckRoomPassword when the backend
	// rejects the submitted room password. Non-fatal by design.
	ErrWrongPassword = errors.New("wrong room password")
)

// APIClient talks to the REST backend. Every authenticated call carries
// the bearer token from the bound SessionContext.
type APIClient struct {
	baseURL string
	client  *http.Client

	mu  sync.RWMutex
	ctx SessionContext
}

// NewAPIClient builds a client for the given base URL, e.g.
// "http://localhost:8080". The client starts anonymous; SetContext binds
// the identity after login.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// SetContext binds the client to a new identity, used after login when
// the token becomes available.
func (a *APIClient) SetContext(ctx SessionContext) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()
}

// Context exposes the identity the client is bound to.
func (a *APIClient) Context() SessionContext {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ctx
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// UserInfo is the authenticated user's profile as returned by /auth/me.
type UserInfo struct {
	ID          int64        `json:"id"`
	Username    string       `json:"username"`
	AvatarURL   string       `json:"avatarUrl,omitempty"`
	SocialLinks []SocialLink `json:"socialLinks,omitempty"`
}

// SocialLink is one external link on a user profile.
type SocialLink struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Login exchanges credentials for a token-bearing session context.
func (a *APIClient) Login(username, password string) (SessionContext, error) {
	payload := map[string]string{"username": username, "password": password}
	var resp loginResponse
	if err := a.doJSON(http.MethodPost, "/api/auth/login", payload, &resp); err != nil {
		return SessionContext{}, err
	}
	name := resp.Username
	if name == "" {
		name = username
	}
	return SessionContext{Username: name, Token: resp.Token}, nil
}

// Register creates a new account. The caller still has to log in.
func (a *APIClient) Register(username, email, password string) error {
	payload := map[string]string{"username": username, "email": email, "password": password}
	return a.doJSON(http.MethodPost, "/api/auth/register", payload, nil)
}

// Me fetches the authenticated user's profile.
func (a *APIClient) Me() (*UserInfo, error) {
	var info UserInfo
	if err := a.doJSON(http.MethodGet, "/api/auth/me", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListRooms returns all rooms visible to the user.
func (a *APIClient) ListRooms() ([]Room, error) {
	var rooms []Room
	if err := a.doJSON(http.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a room and returns its metadata.
func (a *APIClient) CreateRoom(name, password, description string, closed bool) (*Room, error) {
	payload := map[string]any{
		"name":        name,
		"password":    password,
		"description": description,
		"isClosed":    closed,
	}
	var room Room
	if err := a.doJSON(http.MethodPost, "/api/rooms/create", payload, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// GetRoom fetches one room's metadata.
func (a *APIClient) GetRoom(roomID string) (*Room, error) {
	var room Room
	if err := a.doJSON(http.MethodGet, "/api/rooms/"+url.PathEscape(roomID), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// CheckRoomPassword submits a room password for a remote boolean check.
// The plaintext is never compared locally.
func (a *APIClient) CheckRoomPassword(roomID, password string) (bool, error) {
	payload := map[string]string{"password": password}
	var granted bool
	path := "/api/rooms/" + url.PathEscape(roomID) + "/check-password"
	if err := a.doJSON(http.MethodPost, path, payload, &granted); err != nil {
		return false, err
	}
	return granted, nil
}

// DeleteRoom removes a room. Owner only; the backend enforces it.
func (a *APIClient) DeleteRoom(roomID string) error {
	return a.doJSON(http.MethodDelete, "/api/rooms/"+url.PathEscape(roomID), nil, nil)
}

// UpdateRoomName renames a room and returns the updated metadata.
func (a *APIClient) UpdateRoomName(roomID, name string) (*Room, error) {
	payload := map[string]string{"name": name}
	var room Room
	path := "/api/rooms/" + url.PathEscape(roomID) + "/update-name"
	if err := a.doJSON(http.MethodPut, path, payload, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// UpdateRoomPassword replaces the room password.
func (a *APIClient) UpdateRoomPassword(roomID, newPassword string) error {
	payload := map[string]string{"newPassword": newPassword}
	path := "/api/rooms/" + url.PathEscape(roomID) + "/update-password"
	return a.doJSON(http.MethodPut, path, payload, nil)
}

// FetchMessages returns the room's chat history.
func (a *APIClient) FetchMessages(roomID string) ([]ChatMessage, error) {
	var messages []ChatMessage
	if err := a.doJSON(http.MethodGet, "/api/chat/"+url.PathEscape(roomID), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// PostMessage sends a chat message, optionally replying to another one.
// The message reaches the local log via the broker broadcast, not here.
func (a *APIClient) PostMessage(roomID, content string, replyTo *ParentRef) error {
	payload := map[string]any{
		"username":         a.Context().Username,
		"encryptedContent": content,
	}
	if replyTo != nil {
		payload["parentMessage"] = map[string]string{"id": replyTo.ID}
	} else {
		payload["parentMessage"] = nil
	}
	return a.doJSON(http.MethodPost, "/api/chat/"+url.PathEscape(roomID), payload, nil)
}

// DeleteMessage removes a chat message remotely. The local log drops the
// entry only after this call succeeds.
func (a *APIClient) DeleteMessage(messageID string) error {
	return a.doJSON(http.MethodDelete, "/api/chat/"+url.PathEscape(messageID), nil, nil)
}

// FetchVideoState returns the authoritative playback snapshot.
func (a *APIClient) FetchVideoState(roomID string) (*VideoState, error) {
	var state VideoState
	path := "/api/rooms/" + url.PathEscape(roomID) + "/video-state"
	if err := a.doJSON(http.MethodGet, path, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// FetchParticipants returns the current roster snapshot.
func (a *APIClient) FetchParticipants(roomID string) ([]string, error) {
	var roster []string
	path := "/api/rooms/" + url.PathEscape(roomID) + "/participants"
	if err := a.doJSON(http.MethodGet, path, nil, &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// GetUserProfile fetches a public profile by username.
func (a *APIClient) GetUserProfile(username string) (*UserInfo, error) {
	var info UserInfo
	if err := a.doJSON(http.MethodGet, "/api/users/"+url.PathEscape(username), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ChangePassword rotates the account password.
func (a *APIClient) ChangePassword(userID int64, current, next string) error {
	payload := map[string]string{"currentPassword": current, "newPassword": next}
	path := fmt.Sprintf("/api/users/%d/change-password", userID)
	return a.doJSON(http.MethodPut, path, payload, nil)
}

// DeleteAccount removes the account permanently.
func (a *APIClient) DeleteAccount(userID int64) error {
	return a.doJSON(http.MethodDelete, fmt.Sprintf("/api/users/%d", userID), nil, nil)
}

// ListSocialLinks returns the profile's external links.
func (a *APIClient) ListSocialLinks(userID int64) ([]SocialLink, error) {
	var links []SocialLink
	path := fmt.Sprintf("/api/users/%d/social-links", userID)
	if err := a.doJSON(http.MethodGet, path, nil, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// AddSocialLink attaches a new external link to the profile.
func (a *APIClient) AddSocialLink(userID int64, name, linkURL string) error {
	payload := map[string]string{"name": name, "url": linkURL}
	return a.doJSON(http.MethodPost, fmt.Sprintf("/api/users/%d/social-links", userID), payload, nil)
}

// DeleteSocialLink removes an external link from the profile.
func (a *APIClient) DeleteSocialLink(userID, linkID int64) error {
	path := fmt.Sprintf("/api/users/%d/social-links/%d", userID, linkID)
	return a.doJSON(http.MethodDelete, path, nil, nil)
}

// UploadAvatar replaces the profile avatar with the given image file.
// Multipart rather than JSON, so it bypasses doJSON.
func (a *APIClient) UploadAvatar(userID int64, filename string, data []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("avatar", filepath.Base(filename))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/users/%d/avatar", a.baseURL, userID), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token := a.Context().Token; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, readResponseError(resp.Body))
	}
	return nil
}

// DeleteAvatar removes the profile avatar.
func (a *APIClient) DeleteAvatar(userID int64) error {
	return a.doJSON(http.MethodDelete, fmt.Sprintf("/api/users/%d/avatar", userID), nil, nil)
}

// RoomLink builds the shareable web URL for a room.
func (a *APIClient) RoomLink(roomID string) string {
	return a.baseURL + "/room/" + url.PathEscape(roomID)
}

func (a *APIClient) doJSON(method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(buf)
	}
	req, err := http.NewRequest(method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.Context().Token; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, readResponseError(resp.Body))
	}
	if out != nil && resp.ContentLength != 0 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	} else if out != nil && resp.ContentLength == 0 {
		// Try to decode in case server sent chunked body without length header.
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func readResponseError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "request failed"
	}
	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err == nil {
		if msg, ok := parsed["error"]; ok {
			return msg
		}
		if msg, ok := parsed["message"]; ok {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}
