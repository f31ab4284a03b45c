package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okvist/parley/internal/admin"
	"github.com/okvist/parley/internal/applog"
	"github.com/okvist/parley/internal/group"
	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/user"
)

const (
	maxBodyBytes = 1 << 20
	timeLayout   = time.RFC3339Nano
)

type Handler struct {
	users    *user.Service
	messages *message.Service
	groups   *group.Service
	admin    *admin.Service
}

func NewHandler(users *user.Service, messages *message.Service, groups *group.Service, adminSvc *admin.Service) *Handler {
	return &Handler{
		users:    users,
		messages: messages,
		groups:   groups,
		admin:    adminSvc,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/users", h.handleUsers)
	mux.HandleFunc("/users/cleanup", h.handleCleanup)
	mux.HandleFunc("/users/", h.handleUserByID)
	mux.HandleFunc("/messages", h.handleMessages)
	mux.HandleFunc("/messages/", h.handleMessageByID)
	mux.HandleFunc("/groups", h.handleGroups)
	mux.HandleFunc("/groups/all", h.handleGroupsAll)
	mux.HandleFunc("/groups/", h.handleGroupByID)
}

type userResponse struct {
	ID        user.ID `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	AvatarURL string  `json:"avatarUrl,omitempty"`
	Status    string  `json:"status,omitempty"`
	LastSeen  int64   `json:"lastSeen"`
	IsAdmin   bool    `json:"isAdmin"`
	IsBanned  bool    `json:"isBanned"`
	CreatedAt string  `json:"createdAt"`
}

func toUserResponse(u user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Status:    u.Status,
		LastSeen:  u.LastSeen,
		IsAdmin:   u.IsAdmin,
		IsBanned:  u.IsBanned,
		CreatedAt: u.CreatedAt.UTC().Format(timeLayout),
	}
}

type messageResponse struct {
	ID         message.ID     `json:"id"`
	SenderID   string         `json:"senderId"`
	ReceiverID string         `json:"receiverId"`
	GroupID    string         `json:"groupId,omitempty"`
	Type       message.Type   `json:"type"`
	Text       string         `json:"text,omitempty"`
	ImageURL   string         `json:"imageUrl,omitempty"`
	AudioURL   string         `json:"audioUrl,omitempty"`
	FileURL    string         `json:"fileUrl,omitempty"`
	FileName   string         `json:"fileName,omitempty"`
	FileType   string         `json:"fileType,omitempty"`
	Timestamp  int64          `json:"timestamp"`
	Status     message.Status `json:"status"`
}

func toMessageResponse(m message.Message) messageResponse {
	return messageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		GroupID:    m.GroupID,
		Type:       m.Type,
		Text:       m.Text,
		ImageURL:   m.ImageURL,
		AudioURL:   m.AudioURL,
		FileURL:    m.FileURL,
		FileName:   m.FileName,
		FileType:   m.FileType,
		Timestamp:  m.Timestamp,
		Status:     m.Status,
	}
}

func toMessageResponses(msgs []message.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

type groupResponse struct {
	ID        group.ID `json:"id"`
	Name      string   `json:"name"`
	AvatarURL string   `json:"avatarUrl,omitempty"`
	AdminID   string   `json:"adminId"`
	MemberIDs []string `json:"memberIds"`
	CreatedAt string   `json:"createdAt"`
}

func toGroupResponse(g group.Group) groupResponse {
	return groupResponse{
		ID:        g.ID,
		Name:      g.Name,
		AvatarURL: g.AvatarURL,
		AdminID:   g.AdminID,
		MemberIDs: g.MemberIDs,
		CreatedAt: g.CreatedAt.UTC().Format(timeLayout),
	}
}

func toGroupResponses(groups []group.Group) []groupResponse {
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupResponse(g))
	}
	return out
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		u, created, err := h.users.RegisterOrFetch(r.Context(), req.Username, req.Email)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		} else {
			_ = h.users.Touch(r.Context(), u.ID)
		}
		writeJSON(w, status, toUserResponse(u))

	case http.MethodGet:
		adminID := user.ID(strings.TrimSpace(r.URL.Query().Get("adminId")))
		var users []user.User
		var err error
		if adminID != "" {
			users, err = h.users.ListForAdmin(r.Context(), adminID)
		} else {
			users, err = h.users.ListVisible(r.Context())
		}
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		out := make([]userResponse, 0, len(users))
		for _, u := range users {
			out = append(out, toUserResponse(u))
		}
		writeJSON(w, http.StatusOK, out)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type updateUserRequest struct {
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
	Status    *string `json:"status"`
}

type banRequest struct {
	AdminID user.ID `json:"adminId"`
}

func (h *Handler) handleUserByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, errors.New("user id is required"))
		return
	}
	id := user.ID(parts[0])

	if len(parts) == 2 {
		switch {
		case parts[1] == "ban" && r.Method == http.MethodPost:
			var req banRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			if err := h.admin.Ban(r.Context(), req.AdminID, id); err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return

		case parts[1] == "permanent" && r.Method == http.MethodDelete:
			adminID := user.ID(strings.TrimSpace(r.URL.Query().Get("adminId")))
			if err := h.admin.PermanentDelete(r.Context(), adminID, id); err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.users.UpdateProfile(r.Context(), id, user.ProfileUpdate{
			Username:  req.Username,
			AvatarURL: req.AvatarURL,
			Status:    req.Status,
		})
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(updated))

	case http.MethodDelete:
		if err := h.users.SoftBan(r.Context(), id); err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type cleanupRequest struct {
	AdminID user.ID `json:"adminId"`
}

type cleanupResponse struct {
	Users    int64 `json:"users"`
	Messages int64 `json:"messages"`
	Groups   int64 `json:"groups"`
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cleanupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.admin.Cleanup(r.Context(), req.AdminID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{
		Users:    result.Users,
		Messages: result.Messages,
		Groups:   result.Groups,
	})
}

type createMessageRequest struct {
	SenderID   string         `json:"senderId"`
	ReceiverID string         `json:"receiverId"`
	GroupID    string         `json:"groupId"`
	Type       message.Type   `json:"type"`
	Text       string         `json:"text"`
	ImageURL   string         `json:"imageUrl"`
	AudioURL   string         `json:"audioUrl"`
	FileURL    string         `json:"fileUrl"`
	FileName   string         `json:"fileName"`
	FileType   string         `json:"fileType"`
	Timestamp  int64          `json:"timestamp"`
	Status     message.Status `json:"status"`
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createMessageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, isNew, err := h.messages.Create(r.Context(), message.Message{
			SenderID:   req.SenderID,
			ReceiverID: req.ReceiverID,
			GroupID:    req.GroupID,
			Type:       req.Type,
			Text:       req.Text,
			ImageURL:   req.ImageURL,
			AudioURL:   req.AudioURL,
			FileURL:    req.FileURL,
			FileName:   req.FileName,
			FileType:   req.FileType,
			Timestamp:  req.Timestamp,
			Status:     req.Status,
		})
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		_ = h.users.Touch(r.Context(), user.ID(req.SenderID))
		status := http.StatusOK
		if isNew {
			status = http.StatusCreated
		}
		writeJSON(w, status, toMessageResponse(created))

	case http.MethodGet:
		query := r.URL.Query()
		if groupID := strings.TrimSpace(query.Get("groupId")); groupID != "" {
			msgs, err := h.messages.ListGroup(r.Context(), groupID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toMessageResponses(msgs))
			return
		}
		u1 := strings.TrimSpace(query.Get("u1"))
		u2 := strings.TrimSpace(query.Get("u2"))
		if u1 == "" || u2 == "" {
			writeError(w, http.StatusBadRequest, errors.New("u1 and u2 query parameters are required"))
			return
		}
		msgs, err := h.messages.ListDirect(r.Context(), u1, u2)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMessageResponses(msgs))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type updateStatusRequest struct {
	Status message.Status `json:"status"`
}

type editMessageRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

func (h *Handler) handleMessageByID(w http.ResponseWriter, r *http.Request) {
	id := message.ID(strings.Trim(strings.TrimPrefix(r.URL.Path, "/messages/"), "/"))
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("message id is required"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req updateStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.messages.UpdateStatus(r.Context(), id, req.Status)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMessageResponse(updated))

	case http.MethodPatch:
		var req editMessageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.messages.Edit(r.Context(), req.UserID, id, req.Text)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMessageResponse(updated))

	case http.MethodDelete:
		if strings.TrimSpace(r.URL.Query().Get("userId")) == "" {
			writeError(w, http.StatusBadRequest, errors.New("userId query parameter is required"))
			return
		}
		if err := h.messages.Delete(r.Context(), id); err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type createGroupRequest struct {
	Name      string   `json:"name"`
	AvatarURL string   `json:"avatarUrl"`
	AdminID   string   `json:"adminId"`
	MemberIDs []string `json:"memberIds"`
}

func (h *Handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createGroupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.groups.Create(r.Context(), req.Name, req.AvatarURL, req.AdminID, req.MemberIDs)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toGroupResponse(created))

	case http.MethodGet:
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			writeError(w, http.StatusBadRequest, errors.New("userId query parameter is required"))
			return
		}
		groups, err := h.groups.ListForUser(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGroupResponses(groups))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGroupsAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	adminID := strings.TrimSpace(r.URL.Query().Get("adminId"))
	groups, err := h.groups.ListAllForAdmin(r.Context(), adminID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponses(groups))
}

type memberRequest struct {
	UserID   string `json:"userId"`
	MemberID string `json:"memberId"`
}

func (h *Handler) handleGroupByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/groups/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, errors.New("group id is required"))
		return
	}
	id := group.ID(parts[0])

	if len(parts) == 2 && parts[1] == "members" {
		switch r.Method {
		case http.MethodPost:
			var req memberRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			updated, err := h.groups.AddMember(r.Context(), req.UserID, id, req.MemberID)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toGroupResponse(updated))

		case http.MethodDelete:
			query := r.URL.Query()
			updated, err := h.groups.RemoveMember(r.Context(), strings.TrimSpace(query.Get("userId")), id, strings.TrimSpace(query.Get("memberId")))
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toGroupResponse(updated))

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, errors.New("userId query parameter is required"))
		return
	}
	if err := h.groups.Delete(r.Context(), userID, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps domain sentinels onto the wire contract.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrInvalidInput),
		errors.Is(err, message.ErrInvalidInput),
		errors.Is(err, group.ErrInvalidInput),
		errors.Is(err, admin.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, message.ErrForbidden),
		errors.Is(err, group.ErrForbidden),
		errors.Is(err, admin.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, user.ErrNotFound),
		errors.Is(err, message.ErrNotFound),
		errors.Is(err, group.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		applog.Error("httpapi", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("multiple json objects are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	applog.Error("httpapi", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
