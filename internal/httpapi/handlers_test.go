package httpapi

import (
	"fmt"
	"net/http"
	"testing"
)

func TestRegister_IdempotentByEmail(t *testing.T) {
	env := newTestEnv(t, "")

	var first userResponse
	status := env.doJSON(t, http.MethodPost, "/users", map[string]string{
		"username": "Alice", "email": "alice@example.com",
	}, &first)
	if status != http.StatusCreated {
		t.Fatalf("first register status = %d, want 201", status)
	}

	var second userResponse
	status = env.doJSON(t, http.MethodPost, "/users", map[string]string{
		"username": "Impostor", "email": "ALICE@example.com",
	}, &second)
	if status != http.StatusOK {
		t.Fatalf("repeat register status = %d, want 200", status)
	}
	if second.ID != first.ID || second.Username != "Alice" {
		t.Fatalf("repeat register = %+v, want the original user", second)
	}
}

func TestRegister_BadInput(t *testing.T) {
	env := newTestEnv(t, "")

	status := env.doJSON(t, http.MethodPost, "/users", map[string]string{
		"username": "", "email": "a@b.c",
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestListUsers_HidesAdminsAndBanned(t *testing.T) {
	env := newTestEnv(t, "root@example.com")

	root := env.registerUser(t, "Root", "root@example.com")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	env.registerUser(t, "Bob", "bob@example.com")

	// soft-ban alice
	if status := env.doJSON(t, http.MethodDelete, "/users/"+string(alice.ID), nil, nil); status != http.StatusOK {
		t.Fatalf("soft ban status = %d", status)
	}

	var visible []userResponse
	if status := env.doJSON(t, http.MethodGet, "/users", nil, &visible); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(visible) != 1 || visible[0].Username != "Bob" {
		t.Fatalf("visible = %+v, want only Bob", visible)
	}

	var all []userResponse
	if status := env.doJSON(t, http.MethodGet, "/users?adminId="+string(root.ID), nil, &all); status != http.StatusOK {
		t.Fatalf("admin list status = %d", status)
	}
	if len(all) != 3 {
		t.Fatalf("admin list has %d users, want 3", len(all))
	}
}

func TestSendMessage_DuplicateTriple(t *testing.T) {
	env := newTestEnv(t, "")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	bob := env.registerUser(t, "Bob", "bob@example.com")

	payload := map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID,
		"type": "text", "text": "hello", "timestamp": 1000,
	}
	var first messageResponse
	if status := env.doJSON(t, http.MethodPost, "/messages", payload, &first); status != http.StatusCreated {
		t.Fatalf("first send status = %d, want 201", status)
	}

	payload["text"] = "hello again"
	var second messageResponse
	if status := env.doJSON(t, http.MethodPost, "/messages", payload, &second); status != http.StatusOK {
		t.Fatalf("duplicate send status = %d, want 200", status)
	}
	if second.ID != first.ID || second.Text != "hello" {
		t.Fatalf("duplicate = %+v, want the original message", second)
	}
}

func TestSendMessage_BannedSenderForbidden(t *testing.T) {
	env := newTestEnv(t, "root@example.com")
	root := env.registerUser(t, "Root", "root@example.com")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	bob := env.registerUser(t, "Bob", "bob@example.com")

	if status := env.doJSON(t, http.MethodPost, "/users/"+string(alice.ID)+"/ban",
		map[string]any{"adminId": root.ID}, nil); status != http.StatusOK {
		t.Fatalf("ban status = %d", status)
	}

	status := env.doJSON(t, http.MethodPost, "/messages", map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID,
		"type": "text", "text": "psst", "timestamp": 1000,
	}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("banned sender status = %d, want 403", status)
	}
}

func TestSendMessage_TypePayloadMismatch(t *testing.T) {
	env := newTestEnv(t, "")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	bob := env.registerUser(t, "Bob", "bob@example.com")

	status := env.doJSON(t, http.MethodPost, "/messages", map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID,
		"type": "image", "text": "not an image", "timestamp": 1000,
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestListDirect_AscendingAndBidirectional(t *testing.T) {
	env := newTestEnv(t, "")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	bob := env.registerUser(t, "Bob", "bob@example.com")

	for _, ts := range []int64{300, 100, 200} {
		status := env.doJSON(t, http.MethodPost, "/messages", map[string]any{
			"senderId": alice.ID, "receiverId": bob.ID,
			"type": "text", "text": fmt.Sprintf("m%d", ts), "timestamp": ts,
		}, nil)
		if status != http.StatusCreated {
			t.Fatalf("send ts=%d status = %d", ts, status)
		}
	}

	path := fmt.Sprintf("/messages?u1=%s&u2=%s", alice.ID, bob.ID)
	var forward []messageResponse
	if status := env.doJSON(t, http.MethodGet, path, nil, &forward); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	want := []int64{100, 200, 300}
	if len(forward) != len(want) {
		t.Fatalf("got %d messages, want %d", len(forward), len(want))
	}
	for i, ts := range want {
		if forward[i].Timestamp != ts {
			t.Fatalf("position %d has ts %d, want %d", i, forward[i].Timestamp, ts)
		}
	}

	reverse := fmt.Sprintf("/messages?u1=%s&u2=%s", bob.ID, alice.ID)
	var backward []messageResponse
	env.doJSON(t, http.MethodGet, reverse, nil, &backward)
	for i := range forward {
		if forward[i].ID != backward[i].ID {
			t.Fatalf("orderings differ at %d", i)
		}
	}
}

func TestListDirect_RequiresBothParticipants(t *testing.T) {
	env := newTestEnv(t, "")

	if status := env.doJSON(t, http.MethodGet, "/messages?u1=a", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestUpdateStatus_DowngradeIsNoOp(t *testing.T) {
	env := newTestEnv(t, "")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	bob := env.registerUser(t, "Bob", "bob@example.com")

	var sent messageResponse
	env.doJSON(t, http.MethodPost, "/messages", map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID,
		"type": "text", "text": "hi", "timestamp": 1000,
	}, &sent)

	var read messageResponse
	if status := env.doJSON(t, http.MethodPut, "/messages/"+string(sent.ID),
		map[string]string{"status": "read"}, &read); status != http.StatusOK {
		t.Fatalf("mark read status = %d", status)
	}
	if read.Status != "read" {
		t.Fatalf("status = %s, want read", read.Status)
	}

	var after messageResponse
	if status := env.doJSON(t, http.MethodPut, "/messages/"+string(sent.ID),
		map[string]string{"status": "delivered"}, &after); status != http.StatusOK {
		t.Fatalf("downgrade status = %d", status)
	}
	if after.Status != "read" {
		t.Fatalf("status downgraded to %s, want read kept", after.Status)
	}
}

func TestEditMessage_SenderOnly(t *testing.T) {
	env := newTestEnv(t, "")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	bob := env.registerUser(t, "Bob", "bob@example.com")

	var sent messageResponse
	env.doJSON(t, http.MethodPost, "/messages", map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID,
		"type": "text", "text": "hi", "timestamp": 1000,
	}, &sent)

	status := env.doJSON(t, http.MethodPatch, "/messages/"+string(sent.ID),
		map[string]any{"userId": bob.ID, "text": "hijacked"}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("non-sender edit status = %d, want 403", status)
	}

	var edited messageResponse
	status = env.doJSON(t, http.MethodPatch, "/messages/"+string(sent.ID),
		map[string]any{"userId": alice.ID, "text": "fixed"}, &edited)
	if status != http.StatusOK || edited.Text != "fixed" {
		t.Fatalf("edit status = %d text = %q", status, edited.Text)
	}
}

func TestDeleteMessage_RequiresUserID(t *testing.T) {
	env := newTestEnv(t, "")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	bob := env.registerUser(t, "Bob", "bob@example.com")

	var sent messageResponse
	env.doJSON(t, http.MethodPost, "/messages", map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID,
		"type": "text", "text": "hi", "timestamp": 1000,
	}, &sent)

	if status := env.doJSON(t, http.MethodDelete, "/messages/"+string(sent.ID), nil, nil); status != http.StatusBadRequest {
		t.Fatalf("delete without userId status = %d, want 400", status)
	}
	path := fmt.Sprintf("/messages/%s?userId=%s", sent.ID, alice.ID)
	if status := env.doJSON(t, http.MethodDelete, path, nil, nil); status != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", status)
	}
}

func TestGroups_LifecycleAndAdminRules(t *testing.T) {
	env := newTestEnv(t, "")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	bob := env.registerUser(t, "Bob", "bob@example.com")
	carol := env.registerUser(t, "Carol", "carol@example.com")

	var created groupResponse
	status := env.doJSON(t, http.MethodPost, "/groups", map[string]any{
		"name": "team", "adminId": alice.ID, "memberIds": []string{string(bob.ID)},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create group status = %d, want 201", status)
	}

	// the admin may not be removed from the member set
	path := fmt.Sprintf("/groups/%s/members?userId=%s&memberId=%s", created.ID, alice.ID, alice.ID)
	if status := env.doJSON(t, http.MethodDelete, path, nil, nil); status != http.StatusForbidden {
		t.Fatalf("remove admin status = %d, want 403", status)
	}

	var joined groupResponse
	status = env.doJSON(t, http.MethodPost, fmt.Sprintf("/groups/%s/members", created.ID),
		map[string]any{"userId": alice.ID, "memberId": carol.ID}, &joined)
	if status != http.StatusOK || len(joined.MemberIDs) != 3 {
		t.Fatalf("add member status = %d members = %v", status, joined.MemberIDs)
	}

	// group history gets purged with the group
	env.doJSON(t, http.MethodPost, "/messages", map[string]any{
		"senderId": alice.ID, "receiverId": created.ID, "groupId": created.ID,
		"type": "text", "text": "hello team", "timestamp": 1000,
	}, nil)

	delPath := fmt.Sprintf("/groups/%s?userId=%s", created.ID, alice.ID)
	if status := env.doJSON(t, http.MethodDelete, delPath, nil, nil); status != http.StatusOK {
		t.Fatalf("delete group status = %d", status)
	}
	if len(env.messages.messages) != 0 {
		t.Fatalf("group messages survived deletion: %+v", env.messages.messages)
	}
}

func TestGroupsAll_AdminOnly(t *testing.T) {
	env := newTestEnv(t, "root@example.com")
	root := env.registerUser(t, "Root", "root@example.com")
	alice := env.registerUser(t, "Alice", "alice@example.com")

	if status := env.doJSON(t, http.MethodGet, "/groups/all?adminId="+string(alice.ID), nil, nil); status != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", status)
	}
	var groups []groupResponse
	if status := env.doJSON(t, http.MethodGet, "/groups/all?adminId="+string(root.ID), nil, &groups); status != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", status)
	}
}

func TestBan_CascadeVisibleThroughAPI(t *testing.T) {
	env := newTestEnv(t, "root@example.com")
	root := env.registerUser(t, "Root", "root@example.com")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	bob := env.registerUser(t, "Bob", "bob@example.com")

	env.doJSON(t, http.MethodPost, "/messages", map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID,
		"type": "text", "text": "hi", "timestamp": 1000,
	}, nil)

	if status := env.doJSON(t, http.MethodPost, "/users/"+string(alice.ID)+"/ban",
		map[string]any{"adminId": root.ID}, nil); status != http.StatusOK {
		t.Fatalf("ban status = %d", status)
	}

	var msgs []messageResponse
	path := fmt.Sprintf("/messages?u1=%s&u2=%s", alice.ID, bob.ID)
	env.doJSON(t, http.MethodGet, path, nil, &msgs)
	if len(msgs) != 0 {
		t.Fatalf("banned user's conversation still has %d messages", len(msgs))
	}
}

func TestCleanup_AdminOnlyWithCounts(t *testing.T) {
	env := newTestEnv(t, "root@example.com")
	root := env.registerUser(t, "Root", "root@example.com")
	alice := env.registerUser(t, "Alice", "alice@example.com")
	bob := env.registerUser(t, "Bob", "bob@example.com")

	env.doJSON(t, http.MethodPost, "/messages", map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID,
		"type": "text", "text": "hi", "timestamp": 1000,
	}, nil)

	if status := env.doJSON(t, http.MethodPost, "/users/cleanup",
		map[string]any{"adminId": alice.ID}, nil); status != http.StatusForbidden {
		t.Fatalf("non-admin cleanup status = %d, want 403", status)
	}

	var result cleanupResponse
	if status := env.doJSON(t, http.MethodPost, "/users/cleanup",
		map[string]any{"adminId": root.ID}, &result); status != http.StatusOK {
		t.Fatalf("cleanup status = %d", status)
	}
	if result.Users != 2 || result.Messages != 1 {
		t.Fatalf("cleanup = %+v, want 2 users and 1 message removed", result)
	}
}

func TestUnknownMessage_NotFound(t *testing.T) {
	env := newTestEnv(t, "")

	status := env.doJSON(t, http.MethodPut, "/messages/ghost",
		map[string]string{"status": "read"}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
}
