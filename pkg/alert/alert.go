// Package alert is the notification dispatcher. Mutations publish
// domain events (assignment, invitation, due-date reminder); delivery
// runs detached from the triggering request and a failed send is
// logged and counted, never propagated back into the mutation.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/datatypes"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/pkg/config"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
)

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flowboard_notifications_total",
	Help: "Notification delivery attempts by channel and outcome.",
}, []string{"channel", "outcome"})

const deliverTimeout = 30 * time.Second

type Dispatcher struct {
	sender  Sender
	siteURL string
	spawn   func(func())
}

func New(sender Sender, siteURL string) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		siteURL: siteURL,
		spawn:   func(f func()) { go f() },
	}
}

// Default wires the production channels: SMTP email and Mnotify SMS.
func Default() *Dispatcher {
	conf := config.GetConfig()
	return New(&combinedSender{
		email: newSMTPSender(),
		sms:   newMnotifyClient(),
	}, conf.Host)
}

type combinedSender struct {
	email *smtpSender
	sms   *mnotifyClient
}

func (s *combinedSender) SendEmail(ctx context.Context, to, subject, body string) error {
	return s.email.SendEmail(ctx, to, subject, body)
}

func (s *combinedSender) SendSMS(ctx context.Context, toPhone, body string) error {
	return s.sms.SendSMS(ctx, toPhone, body)
}

// Discard drops everything; used where no dispatcher is configured.
var Discard Sender = discardSender{}

type discardSender struct{}

func (discardSender) SendEmail(context.Context, string, string, string) error { return nil }
func (discardSender) SendSMS(context.Context, string, string) error           { return nil }

func (d *Dispatcher) deliverEmail(to, subject, body string) {
	d.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := d.sender.SendEmail(ctx, to, subject, body); err != nil {
			notificationsTotal.WithLabelValues("email", "failure").Inc()
			logutils.Log.Errorf("failed to send email to %s: %v", to, err)
			return
		}
		notificationsTotal.WithLabelValues("email", "success").Inc()
		logutils.Log.Infof("sent email to %s", to)
	})
}

func (d *Dispatcher) deliverSMS(toPhone, body string) {
	if toPhone == "" {
		return
	}
	d.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := d.sender.SendSMS(ctx, toPhone, body); err != nil {
			notificationsTotal.WithLabelValues("sms", "failure").Inc()
			logutils.Log.Errorf("failed to send SMS to %s: %v", toPhone, err)
			return
		}
		notificationsTotal.WithLabelValues("sms", "success").Inc()
		logutils.Log.Infof("sent SMS to %s", toPhone)
	})
}

// InvitationCreated notifies the invited address (and phone, if any)
// with the redeemable link.
func (d *Dispatcher) InvitationCreated(inv *model.WorkspaceInvitation, workspaceName, invitedBy string) {
	link := fmt.Sprintf("%s/invite/%s", d.siteURL, inv.Token)
	subject := fmt.Sprintf("You are invited to join %s on FlowBoard", workspaceName)
	body := fmt.Sprintf(
		"Hello %s,\n\n%s invited you to join the workspace %q as %s.\n\n"+
			"Accept the invitation: %s\n\nThe invitation expires on %s.\n\n- FlowBoard",
		inv.RecipientName, invitedBy, workspaceName, inv.Role, link,
		inv.ExpiresAt.Format("2006-01-02 15:04 MST"))
	d.deliverEmail(inv.Email, subject, body)

	sms := fmt.Sprintf("FlowBoard: %s invited you to join %q. Accept: %s", invitedBy, workspaceName, link)
	d.deliverSMS(inv.RecipientPhone, sms)
}

// TaskAssigned notifies a user of a new task assignment.
func (d *Dispatcher) TaskAssigned(user *model.User, task *model.Task, projectName, workspaceName string) {
	link := fmt.Sprintf("%s/tasks/%d", d.siteURL, task.ID)
	subject := fmt.Sprintf("You have been assigned to: %s", task.Title)
	body := fmt.Sprintf(
		"Hello %s,\n\nYou have been assigned to a task in FlowBoard.\n\n"+
			"Task: %s\nProject: %s\nWorkspace: %s\nStatus: %s\nDue Date: %s\n\nView Task: %s\n\n- FlowBoard",
		user.Username, task.Title, projectName, workspaceName, task.Status,
		formatDueDate(task.DueDate), link)
	d.deliverEmail(user.Email, subject, body)

	if user.Phone != nil {
		sms := fmt.Sprintf("FlowBoard: you've been assigned to %q in project %q. Due: %s. View: %s",
			task.Title, projectName, formatDueDate(task.DueDate), link)
		d.deliverSMS(*user.Phone, sms)
	}
}

// SubtaskAssigned notifies a user of a new subtask assignment.
func (d *Dispatcher) SubtaskAssigned(user *model.User, subtask *model.Subtask, taskTitle string) {
	link := fmt.Sprintf("%s/tasks/%d", d.siteURL, subtask.TaskID)
	subject := fmt.Sprintf("You have been assigned to: %s", subtask.Title)
	body := fmt.Sprintf(
		"Hello %s,\n\nYou have been assigned to a subtask of %q.\n\n"+
			"Subtask: %s\nStatus: %s\nDue Date: %s\n\nView: %s\n\n- FlowBoard",
		user.Username, taskTitle, subtask.Title, subtask.Status,
		formatDueDate(subtask.DueDate), link)
	d.deliverEmail(user.Email, subject, body)

	if user.Phone != nil {
		sms := fmt.Sprintf("FlowBoard: you've been assigned to subtask %q of %q. View: %s",
			subtask.Title, taskTitle, link)
		d.deliverSMS(*user.Phone, sms)
	}
}

// TaskDueSoon reminds an assignee about a task due tomorrow.
func (d *Dispatcher) TaskDueSoon(user *model.User, task *model.Task, projectName string) {
	link := fmt.Sprintf("%s/tasks/%d", d.siteURL, task.ID)
	subject := fmt.Sprintf("Due tomorrow: %s", task.Title)
	body := fmt.Sprintf(
		"Hello %s,\n\nThe task %q in project %q is due on %s.\n\nView Task: %s\n\n- FlowBoard",
		user.Username, task.Title, projectName, formatDueDate(task.DueDate), link)
	d.deliverEmail(user.Email, subject, body)
}

func formatDueDate(d *datatypes.Date) string {
	if d == nil {
		return "Not set"
	}
	return time.Time(*d).Format("2006-01-02")
}
