package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "user:pass@tcp(localhost:3306)/vales")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/reports", cfg.Server.BasePath)
	assert.Equal(t, "chromium", cfg.PDF.Engine)
	assert.Equal(t, 60*time.Second, cfg.PDF.Timeout)
	assert.Equal(t, "morelia.tecnm.mx", cfg.InstitutionalDomain)
	assert.Equal(t, map[string]string{
		"Y1-Y2": "labpotencia",
		"Y6-Y7": "labelectronica",
		"Y8":    "labthird",
	}, cfg.LabTables)
	assert.Equal(t, []string{"Y1-Y2", "Y6-Y7", "Y8"}, cfg.Labs())
	assert.Empty(t, cfg.Programs)
	assert.Empty(t, cfg.Batch.Dir)
	assert.Equal(t, "pdf", cfg.Batch.Format)
	assert.Equal(t, "0 6 * * 1", cfg.Batch.Schedule)
	assert.Equal(t, 2, cfg.Batch.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Batch.RetryInterval)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_DSN", "postgres://localhost/vales")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("LAB_TABLES", "Y8:labthird,Z1:labredes")
	t.Setenv("CARRERAS_DISPONIBLES", "Ingeniería Electrónica, Ingeniería en Sistemas ,")
	t.Setenv("PDF_ENGINE", "wkhtmltopdf")
	t.Setenv("PDF_TIMEOUT", "2m")
	t.Setenv("TRACKER_DSN", "file:history.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, map[string]string{"Y8": "labthird", "Z1": "labredes"}, cfg.LabTables)
	assert.Equal(t, []string{"Ingeniería Electrónica", "Ingeniería en Sistemas"}, cfg.Programs)
	assert.Equal(t, "wkhtmltopdf", cfg.PDF.Engine)
	assert.Equal(t, 2*time.Minute, cfg.PDF.Timeout)
	assert.Equal(t, "file:history.db", cfg.Tracker.DSN)
}

func TestLoad_FileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labreports.yaml")
	content := `
database:
  driver: sqlite
  dsn: "file:vales.db"
pdf:
  engine: none
  timeout: 90s
lab_tables:
  Z2: labmecatronica
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:vales.db", cfg.Database.DSN)
	assert.Equal(t, "none", cfg.PDF.Engine)
	assert.Equal(t, 90*time.Second, cfg.PDF.Timeout)
	assert.Equal(t, "labmecatronica", cfg.LabTables["Z2"])
	assert.Equal(t, "labthird", cfg.LabTables["Y8"])
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing dsn", env: map[string]string{}},
		{name: "unknown driver", env: map[string]string{"DB_DSN": "x", "DB_DRIVER": "oracle"}},
		{name: "unsafe table", env: map[string]string{"DB_DSN": "x", "LAB_TABLES": "Y8:labthird;drop"}},
		{name: "unknown engine", env: map[string]string{"DB_DSN": "x", "PDF_ENGINE": "reportlab"}},
		{name: "bad base path", env: map[string]string{"DB_DSN": "x", "HTTP_BASE_PATH": "reports"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("DB_DSN", "x")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config from file")
}

func TestProgramAllowed(t *testing.T) {
	cfg := &Config{Programs: []string{"Ingeniería Electrónica", "Ingeniería en Sistemas"}}

	assert.True(t, cfg.ProgramAllowed("Ingeniería Electrónica"))
	assert.True(t, cfg.ProgramAllowed(" Ingeniería en Sistemas "))
	assert.False(t, cfg.ProgramAllowed("Arquitectura"))
	assert.False(t, cfg.ProgramAllowed(""))
	assert.False(t, (&Config{}).ProgramAllowed("Ingeniería Electrónica"))
}

func TestValidInstitutionalEmail(t *testing.T) {
	cfg := &Config{InstitutionalDomain: "morelia.tecnm.mx"}

	cases := []struct {
		email string
		id    string
		want  bool
	}{
		{email: "l20120001@morelia.tecnm.mx", id: "20120001", want: true},
		{email: "20120001@morelia.tecnm.mx", id: "20120001", want: true},
		{email: "c1234@morelia.tecnm.mx", id: "1234", want: true},
		{email: "l20120001@gmail.com", id: "20120001", want: false},
		{email: "ab20120001@morelia.tecnm.mx", id: "20120001", want: false},
		{email: "l20120001@moreliaxtecnm.mx", id: "20120001", want: false},
		{email: "l20120002@morelia.tecnm.mx", id: "20120001", want: false},
		{email: "l20120001@morelia.tecnm.mx", id: "", want: false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cfg.ValidInstitutionalEmail(tc.email, tc.id), tc.email)
	}
}
