package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-desk/internal/domain"
)

func newNotificationFixture() (*NotificationService, *fakeNotificationRepo, *fakeTeamMessageRepo) {
	notifications := &fakeNotificationRepo{}
	teamMessages := &fakeTeamMessageRepo{}
	return NewNotificationService(notifications, teamMessages), notifications, teamMessages
}

func TestNotificationFeedLifecycle(t *testing.T) {
	svc, repo, _ := newNotificationFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &domain.Notification{RecipientID: "alice", Message: "hello"}))
	}
	require.NoError(t, repo.Create(ctx, &domain.Notification{RecipientID: "bob", Message: "other feed"}))

	count, err := svc.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	unread, err := svc.ListUnread(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	require.NoError(t, svc.MarkRead(ctx, "alice", unread[0].ID))
	count, err = svc.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, svc.MarkAllRead(ctx, "alice"))
	count, err = svc.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = svc.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "other feeds are untouched")
}

func TestMarkReadIsScopedToOwner(t *testing.T) {
	svc, repo, _ := newNotificationFixture()
	ctx := context.Background()

	n := &domain.Notification{RecipientID: "alice", Message: "private"}
	require.NoError(t, repo.Create(ctx, n))

	err := svc.MarkRead(ctx, "bob", n.ID)
	assert.Error(t, err, "cannot acknowledge someone else's notification")
}

func TestPostTeamMessageRequiresMembership(t *testing.T) {
	svc, _, _ := newNotificationFixture()
	ctx := context.Background()

	outsider := requester("alice", "DAF")
	_, err := svc.PostTeamMessage(ctx, outsider, "informatique", "hello")
	assert.Error(t, err)

	member := requester("bob", "INFORMATIQUE")
	msg, err := svc.PostTeamMessage(ctx, member, "informatique", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "INFORMATIQUE", msg.Service, "service tag is normalized")
	assert.Equal(t, "hello", msg.Content, "content is trimmed")
	assert.Equal(t, member.ID, msg.AuthorID)
}

func TestPostTeamMessageContentRequired(t *testing.T) {
	svc, _, _ := newNotificationFixture()

	member := requester("bob", "INFORMATIQUE")
	_, err := svc.PostTeamMessage(context.Background(), member, "informatique", "   ")
	assert.Error(t, err)
}

func TestTeamChatAccessByCompetencyAndAdmin(t *testing.T) {
	svc, _, _ := newNotificationFixture()
	ctx := context.Background()

	// A solver assigned to a service chats there without being
	// organizationally attached to it.
	tech := solverUser("tech", "INFORMATIQUE")
	_, err := svc.PostTeamMessage(ctx, tech, "informatique", "on it")
	require.NoError(t, err)

	admin := &domain.User{ID: "root", Username: "root", Role: domain.RoleAdmin}
	msgs, err := svc.ListTeamMessages(ctx, admin, "informatique", 50)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	outsider := requester("alice", "DAF")
	_, err = svc.ListTeamMessages(ctx, outsider, "informatique", 50)
	assert.Error(t, err)
}

func TestTeamChatRejectsEmptyServiceTag(t *testing.T) {
	svc, _, _ := newNotificationFixture()

	admin := &domain.User{ID: "root", Username: "root", Role: domain.RoleAdmin}
	_, err := svc.PostTeamMessage(context.Background(), admin, "   ", "hello")
	assert.Error(t, err)
}
