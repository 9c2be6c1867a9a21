package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ebaygate/ebaygate/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			HTTPPort:        8080,
			ShutdownTimeout: 30 * time.Second,
			LogLevel:        "info",
		},
	}
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, RootCmd)
	assert.Equal(t, "ebaygate", RootCmd.Use)
	assert.Contains(t, RootCmd.Long, "OAuth")
}

func TestVersionCommand(t *testing.T) {
	assert.NotNil(t, versionCmd)
	assert.Equal(t, "version", versionCmd.Use)
}

func TestGetGlobalFlags(t *testing.T) {
	InitCLI()

	flags := GetGlobalFlags()
	assert.Equal(t, "config.yaml", flags.Config)
	assert.Equal(t, "./data/ebaygate.db", flags.DBPath)
	assert.False(t, flags.Verbose)
}

func TestInitCLIIdempotent(t *testing.T) {
	InitCLI()
	InitCLI()
	assert.True(t, IsCLIInitialized())
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
}

func TestServeCommandRegistered(t *testing.T) {
	InitCLI()

	names := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "keygen", "accounts", "connections", "tokens", "doctor", "version"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}

func TestApplyServeFlags(t *testing.T) {
	cfg := testConfig()

	serveFlags.Host = "10.0.0.5"
	serveFlags.Port = 9443
	serveFlags.TLS = true
	serveFlags.TLSCert = "/tmp/cert.pem"
	serveFlags.TLSKey = "/tmp/key.pem"
	serveFlags.TLSVersion = "1.2"
	defer func() {
		serveFlags.Host = ""
		serveFlags.Port = 0
		serveFlags.TLS = false
		serveFlags.TLSCert = ""
		serveFlags.TLSKey = ""
		serveFlags.TLSVersion = ""
	}()

	applyServeFlags(cfg)

	assert.Equal(t, "10.0.0.5", cfg.Server.Host)
	assert.Equal(t, 9443, cfg.Server.HTTPPort)
	assert.True(t, cfg.Server.TLS.Enabled)
	assert.Equal(t, "/tmp/cert.pem", cfg.Server.TLS.CertFile)
	assert.Equal(t, "/tmp/key.pem", cfg.Server.TLS.KeyFile)
	assert.Equal(t, "1.2", cfg.Server.TLS.MinVersion)
}

func TestDoctorReportJSONShape(t *testing.T) {
	report := DoctorReport{
		Checks: []DoctorCheck{
			{Name: "config", Status: "OK", Message: "loaded config.yaml"},
			{Name: "database", Status: "FAIL", Message: "cannot open"},
		},
	}

	assert.Len(t, report.Checks, 2)
	assert.Equal(t, "FAIL", report.Checks[1].Status)
}
