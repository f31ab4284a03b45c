package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/okvist/parley/internal/group"
	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/user"
)

// RequestTimeout bounds every interactive remote call. Expiry cancels the
// underlying request, so a slow response is abandoned rather than left to
// land after the fallback path has already answered.
const RequestTimeout = 3 * time.Second

// Remote translates logical operations into HTTP calls against the API and
// classifies every outcome. It never returns a Go error past its boundary;
// the gateway's control flow branches on Outcome values only.
type Remote struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

func NewRemote(baseURL string) *Remote {
	return &Remote{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
		timeout: RequestTimeout,
	}
}

func (r *Remote) BaseURL() string {
	return r.baseURL
}

type apiError struct {
	Error string `json:"error"`
}

type userPayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
	Status    string `json:"status"`
	LastSeen  int64  `json:"lastSeen"`
	IsAdmin   bool   `json:"isAdmin"`
	IsBanned  bool   `json:"isBanned"`
	CreatedAt string `json:"createdAt"`
}

func (p userPayload) toUser() user.User {
	createdAt, _ := time.Parse(time.RFC3339Nano, p.CreatedAt)
	return user.User{
		ID:        user.ID(p.ID),
		Username:  p.Username,
		Email:     p.Email,
		AvatarURL: p.AvatarURL,
		Status:    p.Status,
		LastSeen:  p.LastSeen,
		IsAdmin:   p.IsAdmin,
		IsBanned:  p.IsBanned,
		CreatedAt: createdAt,
	}
}

type messagePayload struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	GroupID    string `json:"groupId"`
	Type       string `json:"type"`
	Text       string `json:"text"`
	ImageURL   string `json:"imageUrl"`
	AudioURL   string `json:"audioUrl"`
	FileURL    string `json:"fileUrl"`
	FileName   string `json:"fileName"`
	FileType   string `json:"fileType"`
	Timestamp  int64  `json:"timestamp"`
	Status     string `json:"status"`
}

func (p messagePayload) toMessage() message.Message {
	return message.Message{
		ID:         message.ID(p.ID),
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		GroupID:    p.GroupID,
		Type:       message.Type(p.Type),
		Text:       p.Text,
		ImageURL:   p.ImageURL,
		AudioURL:   p.AudioURL,
		FileURL:    p.FileURL,
		FileName:   p.FileName,
		FileType:   p.FileType,
		Timestamp:  p.Timestamp,
		Status:     message.Status(p.Status),
	}
}

func fromMessage(m message.Message) messagePayload {
	return messagePayload{
		ID:         string(m.ID),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		GroupID:    m.GroupID,
		Type:       string(m.Type),
		Text:       m.Text,
		ImageURL:   m.ImageURL,
		AudioURL:   m.AudioURL,
		FileURL:    m.FileURL,
		FileName:   m.FileName,
		FileType:   m.FileType,
		Timestamp:  m.Timestamp,
		Status:     string(m.Status),
	}
}

type groupPayload struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	AvatarURL string   `json:"avatarUrl"`
	AdminID   string   `json:"adminId"`
	MemberIDs []string `json:"memberIds"`
	CreatedAt string   `json:"createdAt"`
}

func (p groupPayload) toGroup() group.Group {
	createdAt, _ := time.Parse(time.RFC3339Nano, p.CreatedAt)
	return group.Group{
		ID:        group.ID(p.ID),
		Name:      p.Name,
		AvatarURL: p.AvatarURL,
		AdminID:   p.AdminID,
		MemberIDs: p.MemberIDs,
		CreatedAt: createdAt,
	}
}

func (r *Remote) Health(ctx context.Context) Outcome {
	return r.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (r *Remote) RegisterUser(ctx context.Context, username, email string) (user.User, Outcome) {
	payload := map[string]string{"username": username, "email": email}
	var resp userPayload
	outcome := r.do(ctx, http.MethodPost, "/users", payload, &resp)
	return resp.toUser(), outcome
}

func (r *Remote) ListUsers(ctx context.Context) ([]user.User, Outcome) {
	var resp []userPayload
	outcome := r.do(ctx, http.MethodGet, "/users", nil, &resp)
	users := make([]user.User, 0, len(resp))
	for _, p := range resp {
		users = append(users, p.toUser())
	}
	return users, outcome
}

func (r *Remote) ListUsersForAdmin(ctx context.Context, adminID string) ([]user.User, Outcome) {
	query := url.Values{}
	query.Set("adminId", adminID)
	var resp []userPayload
	outcome := r.do(ctx, http.MethodGet, "/users?"+query.Encode(), nil, &resp)
	users := make([]user.User, 0, len(resp))
	for _, p := range resp {
		users = append(users, p.toUser())
	}
	return users, outcome
}

// ProfileUpdate mirrors the PUT /users/{id} body; nil fields are omitted.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
	Status    *string `json:"status,omitempty"`
}

func (r *Remote) UpdateUser(ctx context.Context, id string, update ProfileUpdate) (user.User, Outcome) {
	var resp userPayload
	outcome := r.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), update, &resp)
	return resp.toUser(), outcome
}

func (r *Remote) SoftBanUser(ctx context.Context, id string) Outcome {
	return r.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

func (r *Remote) BanUser(ctx context.Context, adminID, id string) Outcome {
	payload := map[string]string{"adminId": adminID}
	return r.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/ban", payload, nil)
}

func (r *Remote) PermanentDeleteUser(ctx context.Context, adminID, id string) Outcome {
	query := url.Values{}
	query.Set("adminId", adminID)
	return r.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id)+"/permanent?"+query.Encode(), nil, nil)
}

// CleanupCounts reports what a full cleanup removed.
type CleanupCounts struct {
	Users    int64 `json:"users"`
	Messages int64 `json:"messages"`
	Groups   int64 `json:"groups"`
}

func (r *Remote) Cleanup(ctx context.Context, adminID string) (CleanupCounts, Outcome) {
	payload := map[string]string{"adminId": adminID}
	var resp CleanupCounts
	outcome := r.do(ctx, http.MethodPost, "/users/cleanup", payload, &resp)
	return resp, outcome
}

func (r *Remote) SendMessage(ctx context.Context, m message.Message) Outcome {
	return r.do(ctx, http.MethodPost, "/messages", fromMessage(m), nil)
}

func (r *Remote) ListDirectMessages(ctx context.Context, a, b string) ([]message.Message, Outcome) {
	query := url.Values{}
	query.Set("u1", a)
	query.Set("u2", b)
	return r.listMessages(ctx, "/messages?"+query.Encode())
}

func (r *Remote) ListGroupMessages(ctx context.Context, groupID string) ([]message.Message, Outcome) {
	query := url.Values{}
	query.Set("groupId", groupID)
	return r.listMessages(ctx, "/messages?"+query.Encode())
}

func (r *Remote) listMessages(ctx context.Context, path string) ([]message.Message, Outcome) {
	var resp []messagePayload
	outcome := r.do(ctx, http.MethodGet, path, nil, &resp)
	msgs := make([]message.Message, 0, len(resp))
	for _, p := range resp {
		msgs = append(msgs, p.toMessage())
	}
	return msgs, outcome
}

func (r *Remote) UpdateMessageStatus(ctx context.Context, id string, status message.Status) Outcome {
	payload := map[string]string{"status": string(status)}
	return r.do(ctx, http.MethodPut, "/messages/"+url.PathEscape(id), payload, nil)
}

func (r *Remote) EditMessage(ctx context.Context, actorID, id, text string) Outcome {
	payload := map[string]string{"userId": actorID, "text": text}
	return r.do(ctx, http.MethodPatch, "/messages/"+url.PathEscape(id), payload, nil)
}

func (r *Remote) DeleteMessage(ctx context.Context, actorID, id string) Outcome {
	query := url.Values{}
	query.Set("userId", actorID)
	return r.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id)+"?"+query.Encode(), nil, nil)
}

func (r *Remote) CreateGroup(ctx context.Context, name, avatarURL, adminID string, memberIDs []string) (group.Group, Outcome) {
	payload := map[string]any{
		"name":      name,
		"avatarUrl": avatarURL,
		"adminId":   adminID,
		"memberIds": memberIDs,
	}
	var resp groupPayload
	outcome := r.do(ctx, http.MethodPost, "/groups", payload, &resp)
	return resp.toGroup(), outcome
}

func (r *Remote) ListGroupsForUser(ctx context.Context, userID string) ([]group.Group, Outcome) {
	query := url.Values{}
	query.Set("userId", userID)
	return r.listGroups(ctx, "/groups?"+query.Encode())
}

func (r *Remote) ListAllGroupsForAdmin(ctx context.Context, adminID string) ([]group.Group, Outcome) {
	query := url.Values{}
	query.Set("adminId", adminID)
	return r.listGroups(ctx, "/groups/all?"+query.Encode())
}

func (r *Remote) listGroups(ctx context.Context, path string) ([]group.Group, Outcome) {
	var resp []groupPayload
	outcome := r.do(ctx, http.MethodGet, path, nil, &resp)
	groups := make([]group.Group, 0, len(resp))
	for _, p := range resp {
		groups = append(groups, p.toGroup())
	}
	return groups, outcome
}

func (r *Remote) DeleteGroup(ctx context.Context, actorID, id string) Outcome {
	query := url.Values{}
	query.Set("userId", actorID)
	return r.do(ctx, http.MethodDelete, "/groups/"+url.PathEscape(id)+"?"+query.Encode(), nil, nil)
}

func (r *Remote) AddGroupMember(ctx context.Context, actorID, id, memberID string) Outcome {
	payload := map[string]string{"userId": actorID, "memberId": memberID}
	return r.do(ctx, http.MethodPost, "/groups/"+url.PathEscape(id)+"/members", payload, nil)
}

func (r *Remote) RemoveGroupMember(ctx context.Context, actorID, id, memberID string) Outcome {
	query := url.Values{}
	query.Set("userId", actorID)
	query.Set("memberId", memberID)
	return r.do(ctx, http.MethodDelete, "/groups/"+url.PathEscape(id)+"/members?"+query.Encode(), nil, nil)
}

func (r *Remote) do(ctx context.Context, method, path string, payload, out any) Outcome {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Outcome{Kind: OutcomeUnreachable, Reason: fmt.Sprintf("encode request: %v", err)}
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return Outcome{Kind: OutcomeUnreachable, Reason: fmt.Sprintf("build request: %v", err)}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Outcome{Kind: OutcomeUnreachable, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Outcome{Kind: OutcomeServerFault, Status: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		var remoteErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&remoteErr)
		return Outcome{Kind: OutcomeRejected, Status: resp.StatusCode, Reason: remoteErr.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return Outcome{Kind: OutcomeServerFault, Status: resp.StatusCode, Reason: fmt.Sprintf("decode response: %v", err)}
		}
	}
	return Outcome{Kind: OutcomeOK, Status: resp.StatusCode}
}
