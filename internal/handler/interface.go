package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/pkg/alert"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
}

// RegisterConfig carries the shared dependencies every manager may
// need. Managers pick what they use.
type RegisterConfig struct {
	DB         *gorm.DB
	Dispatcher *alert.Dispatcher
}

// Registers collects the manager constructors; each handler file adds
// its own in init().
var Registers []func(RegisterConfig) Manager
