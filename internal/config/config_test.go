package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	projectRoot, err := filepath.Abs("../../")
	require.NoError(t, err, "failed to get project root")

	configPath := filepath.Join(projectRoot, "etc") + string(filepath.Separator)

	cfg, err := ReadConfig(configPath)
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Title)
	assert.NotZero(t, cfg.Webserver.Port)
	assert.NotEmpty(t, cfg.Webserver.URL)
	assert.NotEmpty(t, cfg.DB.Host)

	// API settings drive the permissions manager defaults
	assert.NotEmpty(t, cfg.API.BaseURL)
	assert.Equal(t, "lk", cfg.API.Interface)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.API.MinReloadInterval)
}

func TestReadConfigEnvOverride(t *testing.T) {
	projectRoot, err := filepath.Abs("../../")
	require.NoError(t, err)

	configPath := filepath.Join(projectRoot, "etc") + string(filepath.Separator)

	t.Setenv("PROHELPER_CONFIG_JSON", `{"Title":"Overridden"}`)

	cfg, err := ReadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "Overridden", cfg.Title)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         Config
		expectedErr error
	}{
		{
			name:        "missing port",
			cfg:         Config{},
			expectedErr: ErrWebServerPortCanNotBeZero,
		},
		{
			name: "missing url",
			cfg: Config{
				Webserver: Webserver{Port: 8080},
			},
			expectedErr: ErrEmptyURL,
		},
		{
			name: "missing api base url",
			cfg: Config{
				Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
			},
			expectedErr: ErrEmptyAPIBaseURL,
		},
		{
			name: "valid",
			cfg: Config{
				Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
				API:       API{BaseURL: "https://api.prohelper.pro"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate(tc.cfg)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestDumpConfig(t *testing.T) {
	cfg := Config{Title: "ProHelper"}

	out, err := DumpConfig(cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `Title = "ProHelper"`)

	jsonOut, err := DumpConfigJSON(cfg)
	require.NoError(t, err)
	assert.Contains(t, jsonOut, `"Title": "ProHelper"`)
}
