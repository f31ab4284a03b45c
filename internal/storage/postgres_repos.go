package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okvist/parley/internal/group"
	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/user"
)

type userRepo struct {
	db *sql.DB
}

func (r *userRepo) Create(ctx context.Context, u user.User) error {
	if u.ID == "" || u.Username == "" || u.Email == "" || u.CreatedAt.IsZero() {
		return fmt.Errorf("user id, username, email, and created_at are required")
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO users
		(id, username, email, avatar_url, status, last_seen, is_admin, is_banned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Username, u.Email, u.AvatarURL, u.Status, u.LastSeen, u.IsAdmin, u.IsBanned, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, avatar_url, status, last_seen, is_admin, is_banned, created_at`

func scanUser(row interface{ Scan(...any) error }) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.AvatarURL, &u.Status, &u.LastSeen, &u.IsAdmin, &u.IsBanned, &u.CreatedAt)
	return u, err
}

func (r *userRepo) GetByID(ctx context.Context, id user.ID) (user.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("select user by id: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("select user by email: %w", err)
	}
	return u, nil
}

func (r *userRepo) ListVisible(ctx context.Context) ([]user.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users
		WHERE is_admin = FALSE AND is_banned = FALSE ORDER BY created_at`)
}

func (r *userRepo) ListAll(ctx context.Context) ([]user.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
}

func (r *userRepo) list(ctx context.Context, query string) ([]user.User, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, id user.ID, update user.ProfileUpdate) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET
		username = COALESCE($2, username),
		avatar_url = COALESCE($3, avatar_url),
		status = COALESCE($4, status)
		WHERE id = $1`, id, update.Username, update.AvatarURL, update.Status)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return requireRow(res, user.ErrNotFound)
}

func (r *userRepo) SetBanned(ctx context.Context, id user.ID, banned bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_banned = $2 WHERE id = $1`, id, banned)
	if err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	return requireRow(res, user.ErrNotFound)
}

func (r *userRepo) SetLastSeen(ctx context.Context, id user.ID, lastSeen int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen = $2 WHERE id = $1`, id, lastSeen)
	if err != nil {
		return fmt.Errorf("set last_seen: %w", err)
	}
	return requireRow(res, user.ErrNotFound)
}

func (r *userRepo) Delete(ctx context.Context, id user.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res, user.ErrNotFound)
}

func (r *userRepo) DeleteNonAdmins(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE is_admin = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("delete non-admin users: %w", err)
	}
	return res.RowsAffected()
}

type messageRepo struct {
	db *sql.DB
}

const messageColumns = `id, sender_id, receiver_id, group_id, msg_type, body,
	image_url, audio_url, file_url, file_name, file_type, ts, status`

func scanMessage(row interface{ Scan(...any) error }) (message.Message, error) {
	var m message.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.GroupID, &m.Type, &m.Text,
		&m.ImageURL, &m.AudioURL, &m.FileURL, &m.FileName, &m.FileType, &m.Timestamp, &m.Status)
	return m, err
}

func (r *messageRepo) Create(ctx context.Context, m message.Message) error {
	if m.ID == "" || m.SenderID == "" || m.ReceiverID == "" || m.Timestamp <= 0 {
		return fmt.Errorf("message id, sender_id, receiver_id, and ts are required")
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO messages
		(id, sender_id, receiver_id, group_id, msg_type, body, image_url, audio_url, file_url, file_name, file_type, ts, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (sender_id, receiver_id, ts) DO NOTHING`,
		m.ID, m.SenderID, m.ReceiverID, m.GroupID, m.Type, m.Text,
		m.ImageURL, m.AudioURL, m.FileURL, m.FileName, m.FileType, m.Timestamp, m.Status)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *messageRepo) GetByID(ctx context.Context, id message.ID) (message.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return message.Message{}, message.ErrNotFound
		}
		return message.Message{}, fmt.Errorf("select message by id: %w", err)
	}
	return m, nil
}

func (r *messageRepo) GetByKey(ctx context.Context, senderID, receiverID string, timestamp int64) (message.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE sender_id = $1 AND receiver_id = $2 AND ts = $3`, senderID, receiverID, timestamp)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return message.Message{}, message.ErrNotFound
		}
		return message.Message{}, fmt.Errorf("select message by key: %w", err)
	}
	return m, nil
}

func (r *messageRepo) ListDirect(ctx context.Context, a, b string, limit int) ([]message.Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	return r.list(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE group_id = '' AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		ORDER BY ts ASC LIMIT $3`, a, b, limit)
}

func (r *messageRepo) ListGroup(ctx context.Context, groupID string, limit int) ([]message.Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	return r.list(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE group_id = $1 ORDER BY ts ASC LIMIT $2`, groupID, limit)
}

func (r *messageRepo) list(ctx context.Context, query string, args ...any) ([]message.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepo) UpdateStatus(ctx context.Context, id message.ID, status message.Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	return requireRow(res, message.ErrNotFound)
}

func (r *messageRepo) UpdateText(ctx context.Context, id message.ID, text string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET body = $2 WHERE id = $1`, id, text)
	if err != nil {
		return fmt.Errorf("update message text: %w", err)
	}
	return requireRow(res, message.ErrNotFound)
}

func (r *messageRepo) Delete(ctx context.Context, id message.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireRow(res, message.ErrNotFound)
}

func (r *messageRepo) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE sender_id = $1 OR receiver_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete messages for user: %w", err)
	}
	return res.RowsAffected()
}

func (r *messageRepo) DeleteForGroup(ctx context.Context, groupID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE group_id = $1`, groupID)
	if err != nil {
		return 0, fmt.Errorf("delete messages for group: %w", err)
	}
	return res.RowsAffected()
}

func (r *messageRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, fmt.Errorf("delete all messages: %w", err)
	}
	return res.RowsAffected()
}

type groupRepo struct {
	db *sql.DB
}

func (r *groupRepo) Create(ctx context.Context, g group.Group) error {
	if g.ID == "" || g.Name == "" || g.AdminID == "" || g.CreatedAt.IsZero() {
		return fmt.Errorf("group id, name, admin_id, and created_at are required")
	}
	members, err := json.Marshal(g.MemberIDs)
	if err != nil {
		return fmt.Errorf("encode member ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO groups
		(id, name, avatar_url, admin_id, member_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.Name, g.AvatarURL, g.AdminID, members, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (r *groupRepo) GetByID(ctx context.Context, id group.ID) (group.Group, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, avatar_url, admin_id, member_ids, created_at
		FROM groups WHERE id = $1`, id)
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return group.Group{}, group.ErrNotFound
		}
		return group.Group{}, fmt.Errorf("select group by id: %w", err)
	}
	return g, nil
}

func scanGroup(row interface{ Scan(...any) error }) (group.Group, error) {
	var g group.Group
	var members []byte
	if err := row.Scan(&g.ID, &g.Name, &g.AvatarURL, &g.AdminID, &members, &g.CreatedAt); err != nil {
		return group.Group{}, err
	}
	if err := json.Unmarshal(members, &g.MemberIDs); err != nil {
		return group.Group{}, fmt.Errorf("decode member ids: %w", err)
	}
	return g, nil
}

func (r *groupRepo) ListForUser(ctx context.Context, userID string) ([]group.Group, error) {
	return r.list(ctx, `SELECT id, name, avatar_url, admin_id, member_ids, created_at
		FROM groups WHERE member_ids ? $1 ORDER BY created_at`, userID)
}

func (r *groupRepo) ListAll(ctx context.Context) ([]group.Group, error) {
	return r.list(ctx, `SELECT id, name, avatar_url, admin_id, member_ids, created_at
		FROM groups ORDER BY created_at`)
}

func (r *groupRepo) list(ctx context.Context, query string, args ...any) ([]group.Group, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []group.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

func (r *groupRepo) SetMembers(ctx context.Context, id group.ID, memberIDs []string) error {
	members, err := json.Marshal(memberIDs)
	if err != nil {
		return fmt.Errorf("encode member ids: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET member_ids = $2 WHERE id = $1`, id, members)
	if err != nil {
		return fmt.Errorf("update group members: %w", err)
	}
	return requireRow(res, group.ErrNotFound)
}

func (r *groupRepo) Delete(ctx context.Context, id group.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return requireRow(res, group.ErrNotFound)
}

// RemoveMemberFromAll strips userID from every member set except in groups
// they administer, where admin membership is an invariant.
func (r *groupRepo) RemoveMemberFromAll(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET member_ids = member_ids - $1
		WHERE member_ids ? $1 AND admin_id <> $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("remove member from groups: %w", err)
	}
	return res.RowsAffected()
}

func (r *groupRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups`)
	if err != nil {
		return 0, fmt.Errorf("delete all groups: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
