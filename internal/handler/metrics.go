package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
)

type MetricsMgr struct {
	name string
	db   *gorm.DB
}

func NewMetricsMgr(conf RegisterConfig) Manager {
	return &MetricsMgr{
		name: "metrics",
		db:   conf.DB,
	}
}

func (mgr *MetricsMgr) GetName() string { return mgr.name }

func (mgr *MetricsMgr) RegisterPublic(g *gin.RouterGroup) {
	g.GET("/metrics", mgr.GetMetrics)
}

func (mgr *MetricsMgr) RegisterProtected(_ *gin.RouterGroup) {}

var promHTTPHandler http.Handler

var openTasksGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "flowboard_open_tasks_total",
	Help: "Tasks currently in todo or in_progress.",
})

var pendingInvitationsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "flowboard_pending_invitations_total",
	Help: "Unused, unexpired workspace invitations.",
})

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewMetricsMgr)
	promHTTPHandler = promhttp.Handler()
}

// GetMetrics godoc
// @Summary Prometheus metrics
// @Description Gauges are refreshed on scrape; counters come from the notification dispatcher
// @Tags Metrics
// @Produce plain
// @Success 200 {string} string "metrics in Prometheus exposition format"
// @Router /metrics [get]
func (mgr *MetricsMgr) GetMetrics(c *gin.Context) {
	var openTasks, pendingInvitations int64
	mgr.db.Model(&model.Task{}).
		Where("status IN ?", []model.TaskStatus{model.TaskStatusTodo, model.TaskStatusInProgress}).
		Count(&openTasks)
	mgr.db.Model(&model.WorkspaceInvitation{}).
		Where("used = ? AND expires_at > ?", false, time.Now()).
		Count(&pendingInvitations)
	openTasksGauge.Set(float64(openTasks))
	pendingInvitationsGauge.Set(float64(pendingInvitations))

	promHTTPHandler.ServeHTTP(c.Writer, c.Request)
}
