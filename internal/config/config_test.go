package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `
site:
  base_url: https://jobs.example.com/amsterdam?sort=new
  origin: https://jobs.example.com/
  max_pages: 5
  user_agent: jobwatch-test
http:
  timeout_seconds: 10
  headless: true
  nav_timeout_seconds: 20
store:
  path: /tmp/jobs.csv
logging:
  dir: /tmp/logs
  file: run.log
  development: true
  level: debug
mail:
  enabled: true
  host: smtp.example.com
  port: 2525
  user: bot@example.com
  password: secret
  recipient: me@example.com
  subject: Fresh jobs
db:
  dsn: postgres://localhost/jobs
  table: jobs
  max_conns: 4
metrics:
  pushgateway_url: http://localhost:9091
  job: jobwatch-ci
`)
	empty := writeFile(t, ".env", "")

	cfg, err := Load(path, empty)
	require.NoError(t, err)

	assert.Equal(t, "https://jobs.example.com/amsterdam?sort=new", cfg.Site.BaseURL)
	assert.Equal(t, "https://jobs.example.com/", cfg.Site.Origin)
	assert.Equal(t, 5, cfg.Site.MaxPages)
	assert.Equal(t, "jobwatch-test", cfg.Site.UserAgent)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout())
	assert.True(t, cfg.HTTP.Headless)
	assert.Equal(t, 20*time.Second, cfg.NavTimeout())
	assert.Equal(t, "/tmp/jobs.csv", cfg.Store.Path)
	assert.Equal(t, LoggingConfig{Dir: "/tmp/logs", File: "run.log", Development: true, Level: "debug"}, cfg.Logging)
	assert.Equal(t, MailConfig{
		Enabled:   true,
		Host:      "smtp.example.com",
		Port:      2525,
		User:      "bot@example.com",
		Password:  "secret",
		Recipient: "me@example.com",
		Subject:   "Fresh jobs",
	}, cfg.Mail)
	assert.Equal(t, DBConfig{DSN: "postgres://localhost/jobs", Table: "jobs", MaxConns: 4}, cfg.DB)
	assert.Equal(t, MetricsConfig{PushgatewayURL: "http://localhost:9091", Job: "jobwatch-ci"}, cfg.Metrics)
}

func TestLoadDefaultsWithMailDisabled(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", "mail:\n  enabled: false\n")
	cfg, err := Load(path, writeFile(t, ".env", ""))
	require.NoError(t, err)

	assert.Equal(t, "https://www.iamexpat.nl/career/jobs-netherlands/amsterdam", cfg.Site.BaseURL)
	assert.Equal(t, "https://www.iamexpat.nl", cfg.Site.Origin)
	assert.Equal(t, 3, cfg.Site.MaxPages)
	assert.Equal(t, "Mozilla/5.0", cfg.Site.UserAgent)
	assert.Equal(t, 30, cfg.HTTP.TimeoutSeconds)
	assert.Equal(t, 45, cfg.HTTP.NavTimeoutSeconds)
	assert.Equal(t, "data/jobs.csv", cfg.Store.Path)
	assert.Equal(t, "logs", cfg.Logging.Dir)
	assert.Equal(t, "job_scraper.log", cfg.Logging.File)
	assert.Equal(t, "smtp.gmail.com", cfg.Mail.Host)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.Equal(t, "New Job Listings Available!", cfg.Mail.Subject)
	assert.Equal(t, "listings", cfg.DB.Table)
	assert.Empty(t, cfg.DB.DSN)
	assert.Equal(t, "jobwatch", cfg.Metrics.Job)
}

func TestLoadReadsMailVariables(t *testing.T) {
	t.Setenv("EMAIL_USER", "bot@example.com")
	t.Setenv("EMAIL_PASS", "app-password")
	t.Setenv("RECIPIENT_EMAIL", "me@example.com")
	t.Setenv("JOBWATCH_SITE_MAX_PAGES", "7")

	cfg, err := Load("", writeFile(t, ".env", ""))
	require.NoError(t, err)
	assert.Equal(t, "bot@example.com", cfg.Mail.User)
	assert.Equal(t, "app-password", cfg.Mail.Password)
	assert.Equal(t, "me@example.com", cfg.Mail.Recipient)
	assert.Equal(t, 7, cfg.Site.MaxPages)
}

func TestLoadPrefixedMailVariableWins(t *testing.T) {
	t.Setenv("EMAIL_USER", "plain@example.com")
	t.Setenv("JOBWATCH_MAIL_USER", "prefixed@example.com")
	t.Setenv("EMAIL_PASS", "pw")
	t.Setenv("RECIPIENT_EMAIL", "me@example.com")

	cfg, err := Load("", writeFile(t, ".env", ""))
	require.NoError(t, err)
	assert.Equal(t, "prefixed@example.com", cfg.Mail.User)
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	t.Setenv("EMAIL_USER", "real@example.com")
	// t.Setenv restores the previous value; the file-provided keys are cleared by hand.
	t.Cleanup(func() {
		_ = os.Unsetenv("EMAIL_PASS")
		_ = os.Unsetenv("RECIPIENT_EMAIL")
	})
	require.NoError(t, os.Unsetenv("EMAIL_PASS"))
	require.NoError(t, os.Unsetenv("RECIPIENT_EMAIL"))

	envFile := writeFile(t, ".env", "EMAIL_USER=file@example.com\nEMAIL_PASS=from-file\nRECIPIENT_EMAIL=inbox@example.com\n")
	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "real@example.com", cfg.Mail.User)
	assert.Equal(t, "from-file", cfg.Mail.Password)
	assert.Equal(t, "inbox@example.com", cfg.Mail.Recipient)
}

func TestLoadMissingCredentialsFails(t *testing.T) {
	t.Setenv("EMAIL_USER", "")
	t.Setenv("EMAIL_PASS", "")
	t.Setenv("RECIPIENT_EMAIL", "")
	t.Setenv("JOBWATCH_MAIL_USER", "")
	t.Setenv("JOBWATCH_MAIL_PASSWORD", "")
	t.Setenv("JOBWATCH_MAIL_RECIPIENT", "")

	_, err := Load("", writeFile(t, ".env", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMAIL_USER")
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), writeFile(t, ".env", ""))
	require.Error(t, err)

	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)

	bad := writeFile(t, "config.yaml", "site: [unclosed\n")
	_, err = Load(bad, writeFile(t, ".env", ""))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Site:  SiteConfig{BaseURL: "https://example.com/jobs", Origin: "https://example.com", MaxPages: 3},
			HTTP:  HTTPConfig{TimeoutSeconds: 30, NavTimeoutSeconds: 45},
			Store: StoreConfig{Path: "data/jobs.csv"},
			Mail: MailConfig{
				Enabled:   true,
				Port:      587,
				User:      "u",
				Password:  "p",
				Recipient: "r",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero pages", mutate: func(c *Config) { c.Site.MaxPages = 0 }, wantErr: true},
		{name: "relative base url", mutate: func(c *Config) { c.Site.BaseURL = "/jobs" }, wantErr: true},
		{name: "relative origin", mutate: func(c *Config) { c.Site.Origin = "example.com" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, wantErr: true},
		{name: "headless without nav timeout", mutate: func(c *Config) {
			c.HTTP.Headless = true
			c.HTTP.NavTimeoutSeconds = 0
		}, wantErr: true},
		{name: "blank store path", mutate: func(c *Config) { c.Store.Path = " " }, wantErr: true},
		{name: "missing user", mutate: func(c *Config) { c.Mail.User = "" }, wantErr: true},
		{name: "missing password", mutate: func(c *Config) { c.Mail.Password = "" }, wantErr: true},
		{name: "missing recipient", mutate: func(c *Config) { c.Mail.Recipient = "" }, wantErr: true},
		{name: "mail disabled ignores credentials", mutate: func(c *Config) {
			c.Mail = MailConfig{Enabled: false}
		}},
		{name: "negative db conns", mutate: func(c *Config) { c.DB.MaxConns = -1 }, wantErr: true},
		{name: "bad pushgateway", mutate: func(c *Config) { c.Metrics.PushgatewayURL = "localhost:9091/x" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
