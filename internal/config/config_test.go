package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/pbar1/ssh-benchmark/internal/topology"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("load with defaults", func(t *testing.T) {
		cfg, err := Load(New(), "")
		require.NoError(t, err)

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddress())
		assert.Empty(t, cfg.RedisURL)
		assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
		assert.Equal(t, "manifests", cfg.OutputDir)
		assert.Equal(t, "manifestgen", cfg.AppName)
		assert.Equal(t, topology.DefaultScaleConfiguration(topology.SingleContainer), cfg.Scale)
	})

	t.Run("load with custom env vars", func(t *testing.T) {
		t.Setenv("MANIFESTGEN_LOGLEVEL", "debug")
		t.Setenv("MANIFESTGEN_HTTPPORT", "9090")
		t.Setenv("MANIFESTGEN_REDISURL", "redis://cache:6379/1")
		t.Setenv("MANIFESTGEN_CACHETTL", "30s")
		t.Setenv("MANIFESTGEN_SCALE_STRATEGY", "multi-container")
		t.Setenv("MANIFESTGEN_SCALE_PORTS", "20")
		t.Setenv("MANIFESTGEN_SCALE_CONTAINERSPERREPLICA", "20")
		t.Setenv("MANIFESTGEN_SCALE_CONCURRENCYLEVELS", "5,50")
		t.Setenv("MANIFESTGEN_SCALE_CLIENT_MEMORYBASE", "32Mi")

		cfg, err := Load(New(), "")
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "9090", cfg.HTTPPort)
		assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
		assert.Equal(t, 30*time.Second, cfg.CacheTTL)
		assert.Equal(t, topology.MultiContainer, cfg.Scale.Strategy)
		assert.Equal(t, int32(1), cfg.Scale.Replicas)
		assert.Equal(t, int32(20), cfg.Scale.Ports)
		assert.Equal(t, int32(20), cfg.Scale.ContainersPerReplica)
		assert.Equal(t, []int{5, 50}, cfg.Scale.ConcurrencyLevels)
		assert.True(t, resource.MustParse("32Mi").Equal(cfg.Scale.Client.MemoryBase))
		assert.True(t, resource.MustParse("64Ki").Equal(cfg.Scale.Client.MemoryPerConnection))
	})

	t.Run("config file overlays strategy defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
logFormat: console
scale:
  strategy: Hybrid
  namespace: bench
  ports: 8
  containersPerReplica: 2
  targets:
    ordinals: [1]
  server:
    memory: 256Mi
`)
		cfg, err := Load(New(), path)
		require.NoError(t, err)

		assert.Equal(t, "console", cfg.LogFormat)
		assert.Equal(t, topology.Hybrid, cfg.Scale.Strategy)
		assert.Equal(t, "bench", cfg.Scale.Namespace)
		assert.Equal(t, int32(2), cfg.Scale.Replicas)
		assert.Equal(t, int32(8), cfg.Scale.Ports)
		assert.Equal(t, int32(2), cfg.Scale.ContainersPerReplica)
		assert.Equal(t, []int32{1}, cfg.Scale.Targets.Ordinals)
		assert.Empty(t, cfg.Scale.Targets.Ports)
		assert.Equal(t, topology.DefaultConcurrencyLevels, cfg.Scale.ConcurrencyLevels)
		assert.Equal(t, "256Mi", cfg.Scale.Server.Memory.String())
		assert.Equal(t, topology.DefaultServerImage, cfg.Scale.Server.Image)
	})

	t.Run("explicit list replaces default", func(t *testing.T) {
		path := writeConfigFile(t, `
scale:
  concurrencyLevels: [7]
  targets:
    ports: [1, 2]
`)
		cfg, err := Load(New(), path)
		require.NoError(t, err)

		assert.Equal(t, []int{7}, cfg.Scale.ConcurrencyLevels)
		assert.Equal(t, []int32{4}, cfg.Scale.Targets.Ordinals)
		assert.Equal(t, []int32{1, 2}, cfg.Scale.Targets.Ports)
	})
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		file     string
		errorMsg string
	}{
		{
			name:     "unknown strategy",
			env:      map[string]string{"MANIFESTGEN_SCALE_STRATEGY": "round-robin"},
			errorMsg: "unknown strategy",
		},
		{
			name:     "invalid log level",
			env:      map[string]string{"MANIFESTGEN_LOGLEVEL": "trace"},
			errorMsg: "invalid log level",
		},
		{
			name:     "invalid log format",
			env:      map[string]string{"MANIFESTGEN_LOGFORMAT": "xml"},
			errorMsg: "invalid log format",
		},
		{
			name:     "negative cache ttl",
			env:      map[string]string{"MANIFESTGEN_CACHETTL": "-1s"},
			errorMsg: "invalid cache TTL",
		},
		{
			name:     "bad quantity",
			file:     "scale:\n  server:\n    memory: lots\n",
			errorMsg: "failed to decode configuration",
		},
		{
			name:     "missing file",
			file:     "-",
			errorMsg: "failed to read config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			switch tt.file {
			case "":
			case "-":
				path = filepath.Join(t.TempDir(), "absent.yaml")
			default:
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := Load(New(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
			assert.Nil(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		expectError bool
	}{
		{
			name:        "valid",
			cfg:         Config{LogLevel: "warn", LogFormat: "console", HTTPPort: "8080"},
			expectError: false,
		},
		{
			name:        "missing port",
			cfg:         Config{LogLevel: "info", LogFormat: "json"},
			expectError: true,
		},
		{
			name:        "empty level",
			cfg:         Config{LogFormat: "json", HTTPPort: "8080"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuantityDecodeHook(t *testing.T) {
	hook := QuantityDecodeHook()
	quantityType := reflect.TypeOf(resource.Quantity{})

	out, err := hook(reflect.TypeOf(""), quantityType, "1Gi")
	require.NoError(t, err)
	q := out.(resource.Quantity)
	assert.Equal(t, int64(1<<30), q.Value())

	out, err = hook(reflect.TypeOf(0), quantityType, 512)
	require.NoError(t, err)
	q = out.(resource.Quantity)
	assert.Equal(t, int64(512), q.Value())

	out, err = hook(reflect.TypeOf(""), reflect.TypeOf(""), "1Gi")
	require.NoError(t, err)
	assert.Equal(t, "1Gi", out)

	_, err = hook(reflect.TypeOf(""), quantityType, "not-a-quantity")
	assert.Error(t, err)
}

func TestLoadConfigFitsDefaultTargets(t *testing.T) {
	t.Run("fewer replicas", func(t *testing.T) {
		t.Setenv("MANIFESTGEN_SCALE_REPLICAS", "3")

		cfg, err := Load(New(), "")
		require.NoError(t, err)
		assert.Nil(t, cfg.Scale.Targets.Ordinals)
		assert.Equal(t, []int32{234}, cfg.Scale.Targets.Ports)

		_, err = topology.Build(cfg.Scale)
		assert.NoError(t, err)
	})

	t.Run("fewer ports", func(t *testing.T) {
		t.Setenv("MANIFESTGEN_SCALE_PORTS", "100")

		cfg, err := Load(New(), "")
		require.NoError(t, err)
		assert.Equal(t, []int32{4}, cfg.Scale.Targets.Ordinals)
		assert.Nil(t, cfg.Scale.Targets.Ports)
	})

	t.Run("explicit selection is kept", func(t *testing.T) {
		path := writeConfigFile(t, `
scale:
  replicas: 3
  targets:
    ordinals: [4]
`)
		cfg, err := Load(New(), path)
		require.NoError(t, err)
		assert.Equal(t, []int32{4}, cfg.Scale.Targets.Ordinals)

		_, err = topology.Build(cfg.Scale)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})

	t.Run("explicit empty list selects every target", func(t *testing.T) {
		path := writeConfigFile(t, `
scale:
  targets:
    ordinals: []
    ports: []
`)
		cfg, err := Load(New(), path)
		require.NoError(t, err)
		assert.Empty(t, cfg.Scale.Targets.Ordinals)
		assert.Empty(t, cfg.Scale.Targets.Ports)
	})
}
