// Package cronjob runs the scheduled maintenance work: rolling sprint
// statuses over date boundaries, reminding assignees about tasks due
// tomorrow, and sweeping long-expired invitations.
package cronjob

import (
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/flowboard-labs/flowboard/dao/model"
	"github.com/flowboard-labs/flowboard/pkg/alert"
	"github.com/flowboard-labs/flowboard/pkg/config"
	"github.com/flowboard-labs/flowboard/pkg/logutils"
)

const dateLayout = "2006-01-02"

// Expired invitations are kept around for a while so the admin list
// still explains what happened, then purged.
const invitationRetention = 30 * 24 * time.Hour

type Manager struct {
	db         *gorm.DB
	dispatcher *alert.Dispatcher
	cron       *cron.Cron
}

func NewManager(db *gorm.DB, dispatcher *alert.Dispatcher) *Manager {
	return &Manager{
		db:         db,
		dispatcher: dispatcher,
		cron:       cron.New(cron.WithLocation(time.Local)),
	}
}

// Start registers the jobs with the configured specs and starts the
// scheduler.
func (m *Manager) Start() error {
	conf := config.GetConfig().Cron
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"sprint-roll", conf.SprintRoll, m.RollSprintStatuses},
		{"due-soon-reminder", conf.DueSoonReminder, m.SendDueSoonReminders},
		{"invitation-sweep", conf.InvitationSweep, m.SweepInvitations},
	}
	for _, job := range jobs {
		if _, err := m.cron.AddFunc(job.spec, job.fn); err != nil {
			return err
		}
		klog.Infof("Scheduled cron job %s (%s)", job.name, job.spec)
	}
	m.cron.Start()
	return nil
}

func (m *Manager) Stop() {
	m.cron.Stop()
}

// RollSprintStatuses moves sprints across the date boundaries:
// upcoming sprints whose start date has arrived become active, active
// sprints past their end date become completed.
func (m *Manager) RollSprintStatuses() {
	today := time.Now().Format(dateLayout)
	tomorrow := time.Now().AddDate(0, 0, 1).Format(dateLayout)

	res := m.db.Model(&model.Sprint{}).
		Where("status = ? AND start_date < ?", model.SprintStatusUpcoming, tomorrow).
		Update("status", model.SprintStatusActive)
	if res.Error != nil {
		logutils.Log.Error("sprint roll (activate): ", res.Error)
	} else if res.RowsAffected > 0 {
		logutils.Log.Infof("activated %d sprints", res.RowsAffected)
	}

	res = m.db.Model(&model.Sprint{}).
		Where("status = ? AND end_date < ?", model.SprintStatusActive, today).
		Update("status", model.SprintStatusCompleted)
	if res.Error != nil {
		logutils.Log.Error("sprint roll (complete): ", res.Error)
	} else if res.RowsAffected > 0 {
		logutils.Log.Infof("completed %d sprints", res.RowsAffected)
	}
}

// SendDueSoonReminders emails every assignee of an open task that is
// due tomorrow.
func (m *Manager) SendDueSoonReminders() {
	tomorrow := time.Now().AddDate(0, 0, 1).Format(dateLayout)
	dayAfter := time.Now().AddDate(0, 0, 2).Format(dateLayout)

	var tasks []model.Task
	err := m.db.Preload("Assignees").Preload("Project").
		Where("due_date >= ? AND due_date < ? AND status IN ?", tomorrow, dayAfter,
			[]model.TaskStatus{model.TaskStatusTodo, model.TaskStatusInProgress}).
		Find(&tasks).Error
	if err != nil {
		logutils.Log.Error("due-soon reminder query: ", err)
		return
	}

	for i := range tasks {
		task := &tasks[i]
		for j := range task.Assignees {
			m.dispatcher.TaskDueSoon(&task.Assignees[j], task, task.Project.Name)
		}
	}
	if len(tasks) > 0 {
		logutils.Log.Infof("sent due-soon reminders for %d tasks", len(tasks))
	}
}

// SweepInvitations hard-deletes unused invitations that expired more
// than the retention period ago.
func (m *Manager) SweepInvitations() {
	cutoff := time.Now().Add(-invitationRetention)

	res := m.db.Where("used = ? AND expires_at < ?", false, cutoff).
		Delete(&model.WorkspaceInvitation{})
	if res.Error != nil {
		logutils.Log.Error("invitation sweep: ", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		logutils.Log.Infof("swept %d expired invitations", res.RowsAffected)
	}
}
