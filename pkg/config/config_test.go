package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `mapstructure:"name"`
	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
}

func TestLoadAndWatch_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "name: platform-service\nhttp:\n  addr: \":8080\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "platform-service.yaml"), []byte(yaml), 0o644))

	t.Setenv("ACDM_HTTP_ADDR", ":9999")

	var out sample
	v, err := LoadAndWatch("platform-service", &out, Options{Paths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, "platform-service", out.Name)
	// 环境变量覆盖文件
	assert.Equal(t, ":9999", out.HTTP.Addr)
	assert.Equal(t, filepath.Join(dir, "platform-service.yaml"), v.ConfigFileUsed())
}

func TestLoadAndWatch_Missing(t *testing.T) {
	var out sample
	_, err := LoadAndWatch("nope", &out, Options{Paths: []string{t.TempDir()}})
	assert.Error(t, err)
}
