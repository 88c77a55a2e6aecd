package cronjob

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/dao/query"
	"github.com/flowboard-labs/flowboard/pkg/alert"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, query.MigrateForTest(db))
	return db
}

func seedProject(t *testing.T, db *gorm.DB) (*model.User, *model.Project) {
	t.Helper()
	user := &model.User{Username: "grace", Email: "grace@example.com", Password: "x"}
	require.NoError(t, db.Create(user).Error)
	ws := &model.Workspace{Name: "ws", CreatedByID: user.ID}
	require.NoError(t, db.Create(ws).Error)
	project := &model.Project{WorkspaceID: ws.ID, Name: "Lander", CreatedByID: user.ID}
	require.NoError(t, db.Create(project).Error)
	return user, project
}

func date(t time.Time) datatypes.Date { return datatypes.Date(t) }

func TestRollSprintStatuses(t *testing.T) {
	db := newTestDB(t)
	_, project := seedProject(t, db)
	now := time.Now()

	sprints := []model.Sprint{
		// started yesterday, still marked upcoming
		{ProjectID: project.ID, Name: "stale-upcoming", Status: model.SprintStatusUpcoming,
			StartDate: date(now.AddDate(0, 0, -1)), EndDate: date(now.AddDate(0, 0, 13))},
		// starts next week
		{ProjectID: project.ID, Name: "future", Status: model.SprintStatusUpcoming,
			StartDate: date(now.AddDate(0, 0, 7)), EndDate: date(now.AddDate(0, 0, 21))},
		// ended yesterday, still marked active
		{ProjectID: project.ID, Name: "stale-active", Status: model.SprintStatusActive,
			StartDate: date(now.AddDate(0, 0, -14)), EndDate: date(now.AddDate(0, 0, -1))},
		// ends today, stays active
		{ProjectID: project.ID, Name: "ending-today", Status: model.SprintStatusActive,
			StartDate: date(now.AddDate(0, 0, -13)), EndDate: date(now)},
	}
	for i := range sprints {
		require.NoError(t, db.Create(&sprints[i]).Error)
	}

	m := NewManager(db, alert.New(alert.Discard, "http://flowboard.test"))
	m.RollSprintStatuses()

	want := map[string]model.SprintStatus{
		"stale-upcoming": model.SprintStatusActive,
		"future":         model.SprintStatusUpcoming,
		"stale-active":   model.SprintStatusCompleted,
		"ending-today":   model.SprintStatusActive,
	}
	var got []model.Sprint
	require.NoError(t, db.Find(&got).Error)
	require.Len(t, got, len(want))
	for _, s := range got {
		assert.Equal(t, want[s.Name], s.Status, s.Name)
	}
}

func TestSweepInvitations(t *testing.T) {
	db := newTestDB(t)
	user, project := seedProject(t, db)
	now := time.Now()

	invitations := []model.WorkspaceInvitation{
		{WorkspaceID: project.WorkspaceID, Email: "old@example.com", Role: model.WorkspaceRoleMember,
			Token: model.NewInvitationToken(), CreatedByID: user.ID,
			ExpiresAt: now.Add(-invitationRetention - time.Hour)},
		{WorkspaceID: project.WorkspaceID, Email: "recent@example.com", Role: model.WorkspaceRoleMember,
			Token: model.NewInvitationToken(), CreatedByID: user.ID,
			ExpiresAt: now.Add(-time.Hour)},
		// accepted invitations are part of the history and stay
		{WorkspaceID: project.WorkspaceID, Email: "used@example.com", Role: model.WorkspaceRoleMember,
			Token: model.NewInvitationToken(), CreatedByID: user.ID, Used: true,
			ExpiresAt: now.Add(-invitationRetention - time.Hour)},
	}
	for i := range invitations {
		require.NoError(t, db.Create(&invitations[i]).Error)
	}

	m := NewManager(db, alert.New(alert.Discard, "http://flowboard.test"))
	m.SweepInvitations()

	var emails []string
	require.NoError(t, db.Model(&model.WorkspaceInvitation{}).Pluck("email", &emails).Error)
	assert.ElementsMatch(t, []string{"recent@example.com", "used@example.com"}, emails)
}

// channelSender hands delivered emails to the test through a channel so
// the detached delivery can be awaited.
type channelSender struct {
	emails chan string
}

func (s *channelSender) SendEmail(_ context.Context, to, _, _ string) error {
	s.emails <- to
	return nil
}

func (s *channelSender) SendSMS(context.Context, string, string) error { return nil }

func TestSendDueSoonReminders(t *testing.T) {
	db := newTestDB(t)
	user, project := seedProject(t, db)
	now := time.Now()
	tomorrow := date(now.AddDate(0, 0, 1))
	nextWeek := date(now.AddDate(0, 0, 7))

	dueTomorrow := model.Task{ProjectID: project.ID, Title: "due tomorrow",
		Status: model.TaskStatusTodo, DueDate: &tomorrow, CreatedByID: user.ID}
	require.NoError(t, db.Create(&dueTomorrow).Error)
	require.NoError(t, db.Model(&dueTomorrow).Association("Assignees").Append(user))

	// done tasks and later due dates are not reminded
	doneTomorrow := model.Task{ProjectID: project.ID, Title: "already done",
		Status: model.TaskStatusDone, DueDate: &tomorrow, CreatedByID: user.ID}
	require.NoError(t, db.Create(&doneTomorrow).Error)
	require.NoError(t, db.Model(&doneTomorrow).Association("Assignees").Append(user))
	dueLater := model.Task{ProjectID: project.ID, Title: "due later",
		Status: model.TaskStatusTodo, DueDate: &nextWeek, CreatedByID: user.ID}
	require.NoError(t, db.Create(&dueLater).Error)
	require.NoError(t, db.Model(&dueLater).Association("Assignees").Append(user))

	sender := &channelSender{emails: make(chan string, 8)}
	m := NewManager(db, alert.New(sender, "http://flowboard.test"))
	m.SendDueSoonReminders()

	select {
	case to := <-sender.emails:
		assert.Equal(t, "grace@example.com", to)
	case <-time.After(5 * time.Second):
		t.Fatal("no reminder was delivered")
	}
	select {
	case to := <-sender.emails:
		t.Fatalf("unexpected extra reminder to %s", to)
	case <-time.After(100 * time.Millisecond):
	}
}
