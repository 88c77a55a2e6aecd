package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/flowboard-labs/flowboard/dao/model"
)

type recordingSender struct {
	emails []recordedEmail
	sms    []recordedSMS
	err    error
}

type recordedEmail struct {
	to, subject, body string
}

type recordedSMS struct {
	toPhone, body string
}

func (r *recordingSender) SendEmail(_ context.Context, to, subject, body string) error {
	r.emails = append(r.emails, recordedEmail{to, subject, body})
	return r.err
}

func (r *recordingSender) SendSMS(_ context.Context, toPhone, body string) error {
	r.sms = append(r.sms, recordedSMS{toPhone, body})
	return r.err
}

// newSyncDispatcher delivers inline so tests can assert right after
// the triggering call.
func newSyncDispatcher(sender Sender) *Dispatcher {
	d := New(sender, "http://flowboard.test")
	d.spawn = func(f func()) { f() }
	return d
}

func TestInvitationCreated(t *testing.T) {
	sender := &recordingSender{}
	d := newSyncDispatcher(sender)

	inv := &model.WorkspaceInvitation{
		RecipientName:  "Ada",
		Email:          "ada@example.com",
		RecipientPhone: "+233555000111",
		Role:           model.WorkspaceRolePM,
		Token:          "tok123",
		ExpiresAt:      time.Now().Add(model.InvitationTTL),
	}
	d.InvitationCreated(inv, "Apollo", "grace")

	require.Len(t, sender.emails, 1)
	assert.Equal(t, "ada@example.com", sender.emails[0].to)
	assert.Contains(t, sender.emails[0].body, "http://flowboard.test/invite/tok123")
	assert.Contains(t, sender.emails[0].body, "grace")
	assert.Contains(t, sender.emails[0].subject, "Apollo")

	require.Len(t, sender.sms, 1)
	assert.Equal(t, "+233555000111", sender.sms[0].toPhone)
	assert.Contains(t, sender.sms[0].body, "tok123")
}

func TestInvitationCreatedWithoutPhone(t *testing.T) {
	sender := &recordingSender{}
	d := newSyncDispatcher(sender)

	inv := &model.WorkspaceInvitation{
		Email:     "ada@example.com",
		Token:     "tok123",
		ExpiresAt: time.Now().Add(model.InvitationTTL),
	}
	d.InvitationCreated(inv, "Apollo", "grace")

	assert.Len(t, sender.emails, 1)
	assert.Empty(t, sender.sms)
}

func TestTaskAssigned(t *testing.T) {
	sender := &recordingSender{}
	d := newSyncDispatcher(sender)

	phone := "+233555000222"
	due := datatypes.Date(time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC))
	user := &model.User{Username: "ada", Email: "ada@example.com", Phone: &phone}
	task := &model.Task{Title: "Ship it", Status: model.TaskStatusTodo, DueDate: &due}
	task.ID = 42

	d.TaskAssigned(user, task, "Launch", "Apollo")

	require.Len(t, sender.emails, 1)
	assert.Contains(t, sender.emails[0].body, "Ship it")
	assert.Contains(t, sender.emails[0].body, "2026-09-15")
	assert.Contains(t, sender.emails[0].body, "http://flowboard.test/tasks/42")

	require.Len(t, sender.sms, 1)
	assert.Contains(t, sender.sms[0].body, "Ship it")
}

func TestTaskAssignedNoDueDate(t *testing.T) {
	sender := &recordingSender{}
	d := newSyncDispatcher(sender)

	user := &model.User{Username: "ada", Email: "ada@example.com"}
	task := &model.Task{Title: "Ship it", Status: model.TaskStatusTodo}

	d.TaskAssigned(user, task, "Launch", "Apollo")

	require.Len(t, sender.emails, 1)
	assert.Contains(t, sender.emails[0].body, "Not set")
	assert.Empty(t, sender.sms) // no phone on file
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	d := newSyncDispatcher(sender)

	user := &model.User{Username: "ada", Email: "ada@example.com"}
	task := &model.Task{Title: "Ship it"}

	// must not panic or propagate
	d.TaskAssigned(user, task, "Launch", "Apollo")
	assert.Len(t, sender.emails, 1)
}

func TestDiscardSender(t *testing.T) {
	assert.NoError(t, Discard.SendEmail(context.Background(), "a@b.c", "s", "b"))
	assert.NoError(t, Discard.SendSMS(context.Background(), "+1", "b"))
}
