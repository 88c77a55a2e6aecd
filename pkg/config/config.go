package config

import (
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

type Config struct {
	// Host is the externally visible base URL, used in notification
	// links (invitation and task URLs).
	Host       string `yaml:"host"`
	ServerAddr string `yaml:"serverAddr"` // The address the server endpoint binds to.

	Auth struct {
		AccessTokenSecret      string `yaml:"accessTokenSecret"`
		RefreshTokenSecret     string `yaml:"refreshTokenSecret"`
		AccessTokenExpiryHour  int    `yaml:"accessTokenExpiryHour"`
		RefreshTokenExpiryHour int    `yaml:"refreshTokenExpiryHour"`
	} `yaml:"auth"`

	Postgres struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		DBName   string `yaml:"dbname"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode"`
		TimeZone string `yaml:"timeZone"`
	} `yaml:"postgres"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`

	// Mnotify is the SMS gateway. An empty key disables SMS sends;
	// the dispatcher then only logs what it would have sent.
	Mnotify struct {
		APIKey string `yaml:"apiKey"`
		Sender string `yaml:"sender"`
	} `yaml:"mnotify"`

	Storage struct {
		UploadDir string `yaml:"uploadDir"` // Directory for workspace file uploads.
	} `yaml:"storage"`

	Cron struct {
		SprintRoll       string `yaml:"sprintRoll"`       // Roll sprint statuses by date.
		DueSoonReminder  string `yaml:"dueSoonReminder"`  // Email assignees about tasks due tomorrow.
		InvitationSweep  string `yaml:"invitationSweep"`  // Purge invitations expired for over 30 days.
	} `yaml:"cron"`
}

var (
	once   sync.Once
	config *Config
)

func GetConfig() *Config {
	once.Do(func() {
		config = initConfig()
	})
	return config
}

func IsDebugMode() bool {
	return gin.Mode() == gin.DebugMode
}

// initConfig reads the configuration file. In debug mode it reads
// ./etc/debug-config.yaml (overridable via FLOWBOARD_DEBUG_CONFIG_PATH),
// otherwise the mounted /etc/config/config.yaml.
func initConfig() *Config {
	config := &Config{}
	var configPath string
	if IsDebugMode() {
		if os.Getenv("FLOWBOARD_DEBUG_CONFIG_PATH") != "" {
			configPath = os.Getenv("FLOWBOARD_DEBUG_CONFIG_PATH")
		} else {
			configPath = "./etc/debug-config.yaml"
		}
	} else {
		configPath = "/etc/config/config.yaml"
	}
	klog.Info("config path: ", configPath)

	if err := readConfig(configPath, config); err != nil {
		klog.Error("init config", err)
		panic(err)
	}
	config.applyDefaults()
	return config
}

func readConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8088"
	}
	if c.Auth.AccessTokenExpiryHour == 0 {
		c.Auth.AccessTokenExpiryHour = 1
	}
	if c.Auth.RefreshTokenExpiryHour == 0 {
		c.Auth.RefreshTokenExpiryHour = 168
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "./data/uploads"
	}
	if c.Cron.SprintRoll == "" {
		c.Cron.SprintRoll = "10 0 * * *"
	}
	if c.Cron.DueSoonReminder == "" {
		c.Cron.DueSoonReminder = "0 8 * * *"
	}
	if c.Cron.InvitationSweep == "" {
		c.Cron.InvitationSweep = "30 3 * * *"
	}
	if c.Mnotify.Sender == "" {
		c.Mnotify.Sender = "FlowBoard"
	}
}
