package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/flowboard-labs/flowboard/dao/query"
	"github.com/flowboard-labs/flowboard/internal"
	"github.com/flowboard-labs/flowboard/pkg/alert"
	"github.com/flowboard-labs/flowboard/pkg/config"
	"github.com/flowboard-labs/flowboard/pkg/cronjob"
)

// @title FlowBoard API
// @version 1.0.0
// @description Multi-tenant project management backend: organizations, workspaces, projects, sprints and tasks.
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Log in via /v1/auth/login and pass 'Bearer ${TOKEN}' to access protected endpoints
func main() {
	// set global timezone
	time.Local = time.UTC

	backendConfig := config.GetConfig()
	// variable changes in local development
	if gin.Mode() == gin.DebugMode {
		if err := godotenv.Load(".debug.env"); err != nil {
			klog.Warning("no .debug.env found: ", err)
		}
	}

	db := query.GetDB()
	if err := query.Migrate(db); err != nil {
		klog.Fatal("migrate: ", err)
	}

	dispatcher := alert.Default()

	cronMgr := cronjob.NewManager(db, dispatcher)
	if err := cronMgr.Start(); err != nil {
		klog.Fatal("cron: ", err)
	}
	defer cronMgr.Stop()

	backend := internal.Register(db, dispatcher)
	klog.Info("serving on ", backendConfig.ServerAddr)
	if err := backend.R.Run(backendConfig.ServerAddr); err != nil {
		klog.Fatal("server: ", err)
	}
}
