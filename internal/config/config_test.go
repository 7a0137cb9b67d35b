package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigWithAPIKeyMap 验证 api_keys 这种 map 结构能否被正确加载
func TestLoadConfigWithAPIKeyMap(t *testing.T) {
	// 1. 创建一个临时的 YAML 配置文件
	yamlContent := `
rate_limit:
  demo_max_requests: 3
  free_max_requests: 50
  window: "12h"
api_keys:
  key-alpha: "employer-001"
  key-beta: "employer-002"
`
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	defer os.RemoveAll(tmpDir) // 测试结束后清理目录

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err, "无法写入临时配置文件")

	// 2. 调用 LoadConfig 函数加载配置
	config, err := LoadConfig(configPath)

	// 3. 断言结果
	require.NoError(t, err, "加载具有正确语法的配置不应返回错误")
	require.NotNil(t, config, "配置对象不应为 nil")

	expectedKeys := map[string]string{
		"key-alpha": "employer-001",
		"key-beta":  "employer-002",
	}
	assert.Equal(t, expectedKeys, config.APIKeys, "APIKeys 的值与预期不符")

	assert.Equal(t, 3, config.RateLimit.DemoMaxRequests, "DemoMaxRequests 的值与预期不符")
	assert.Equal(t, 50, config.RateLimit.FreeMaxRequests, "FreeMaxRequests 的值与预期不符")
	assert.Equal(t, 12*time.Hour, config.RateLimitWindow(), "窗口解析结果与预期不符")
}

// TestLoadConfigDefaults 验证缺省字段会被填充默认值
func TestLoadConfigDefaults(t *testing.T) {
	yamlContent := `
server:
  address: ""
`
	tmpDir, err := os.MkdirTemp("", "config-test-defaults")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, ":8080", config.Server.Address, "服务器地址应回退到默认值")
	assert.Equal(t, 10, config.RateLimit.DemoMaxRequests, "演示池配额应使用默认值")
	assert.Equal(t, 25, config.RateLimit.FreeMaxRequests, "免费池配额应使用默认值")
	assert.Equal(t, 24*time.Hour, config.RateLimitWindow(), "窗口应使用默认的24小时")
	assert.Equal(t, 5, config.Analyzer.MaxConcurrent, "并发上限应使用默认值")
	assert.InDelta(t, 1.0, config.Gemini.Temperature, 1e-9, "temperature 应使用默认值")
	assert.InDelta(t, 0.95, config.Gemini.TopP, 1e-9, "top_p 应使用默认值")
}

// TestGeminiEnvOverride 验证环境变量覆盖配置文件中的模型设置
func TestGeminiEnvOverride(t *testing.T) {
	yamlContent := `
gemini:
  api_key: "file-key"
  model: "gemini-2.0-flash"
`
	tmpDir, err := os.MkdirTemp("", "config-test-env")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-key", config.Gemini.APIKey, "环境变量应覆盖文件中的API Key")
	assert.Equal(t, "gemini-2.5-pro", config.Gemini.Model, "环境变量应覆盖文件中的模型名")
}

// TestEmployerForKey 验证API Key到雇主的映射查询
func TestEmployerForKey(t *testing.T) {
	config := &Config{APIKeys: map[string]string{"secret": "employer-007"}}

	assert.Equal(t, "employer-007", config.EmployerForKey("secret"))
	assert.Equal(t, "", config.EmployerForKey("unknown"), "未配置的Key应返回空串")
	assert.Equal(t, "", config.EmployerForKey(""), "空Key应返回空串")
}
