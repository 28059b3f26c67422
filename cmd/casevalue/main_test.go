package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"casevalue/internal/config"
	"casevalue/internal/model"
	"casevalue/internal/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[data]\ndata_dir = \""+filepath.ToSlash(filepath.Join(dir, "data"))+"\"\n[log]\nlevel = \"error\"\n"), 0644))

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// TestCalculatorsCmd 测试计算器列表输出
func TestCalculatorsCmd(t *testing.T) {
	out, err := run(t, "calculators", "--category", "toxic-exposure", "--json")
	require.NoError(t, err)

	var items []model.CalculatorSummary
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)

	out, err = run(t, "calculators", "-q", "airplane")
	require.NoError(t, err)
	assert.Contains(t, out, "aviation")
	assert.NotContains(t, out, "talc")
}

// TestEstimateCmd 测试命令行估算
func TestEstimateCmd(t *testing.T) {
	args := []string{"estimate", "aviation",
		"-a", "aircraftType=commercial-airline",
		"-a", "accidentType=crash-fatal",
		"-a", "injuryOutcome=wrongful-death",
		"-a", "victimRole=passenger",
		"-a", "regulationViolation=willful-violation",
		"-a", "pilotCertification=no-certification",
		"-a", "maintenanceIssue=known-defect-ignored",
		"-a", "numberOfVictims=over-50",
	}
	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "$1,296,540,000 - $6,482,700,000")

	_, err = run(t, "estimate", "aviation", "--strict", "-a", "aircraftType=commercial-airline")
	assert.ErrorContains(t, err, "unrecognized answers")

	_, err = run(t, "estimate", "aviation", "-a", "broken")
	assert.ErrorContains(t, err, "expected key=value")

	_, err = run(t, "estimate", "nope")
	assert.ErrorContains(t, err, "unknown calculator")
}

// TestLeadsExportCmd 测试导出命令
func TestLeadsExportCmd(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	st, err := store.New(filepath.Join(dataDir, "casevalue.db"))
	require.NoError(t, err)
	require.NoError(t, st.CreateLead(context.Background(), &model.Lead{
		ID: "l1", FormID: "general", PracticeArea: "general", Name: "Jane Doe",
		Email: "jane@example.com", Phone: "5551234567",
		Fields: model.FieldValues{"firstName": {"Jane"}}, CreatedAt: time.Now(),
	}))
	require.NoError(t, st.Close())

	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[data]\ndata_dir = \""+filepath.ToSlash(dataDir)+"\"\n"), 0644))
	outPath := filepath.Join(dir, "leads.xlsx")

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "leads", "export", "--out", outPath, "--per-form"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), outPath)

	f, err := excelize.OpenFile(outPath)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Leads", "general"}, f.GetSheetList())
}

// TestFormatUSD 测试金额格式化
func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$0", formatUSD(0))
	assert.Equal(t, "$999", formatUSD(999))
	assert.Equal(t, "$1,000", formatUSD(1000))
	assert.Equal(t, "$1,296,540,000", formatUSD(1_296_540_000))
	assert.Equal(t, "-$12,345", formatUSD(-12345))
}

// TestConfigInitCmd 测试生成默认配置且默认不覆盖
func TestConfigInitCmd(t *testing.T) {
	t.Setenv("CASEVALUE_ADMIN_TOKEN", "")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	exec := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := rootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--config", cfgPath, "config", "init"}, args...))
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}

	out, err := exec()
	require.NoError(t, err)
	assert.Contains(t, out, cfgPath)

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Server.Port, cfg.Server.Port)
	assert.Empty(t, cfg.Admin.Token)

	// 已存在时拒绝覆盖
	require.NoError(t, os.WriteFile(cfgPath, []byte("not = [valid"), 0644))
	_, err = exec()
	assert.ErrorContains(t, err, "already exists")

	// --force 可以修复损坏的配置文件
	_, err = exec("--force")
	require.NoError(t, err)
	_, err = config.LoadConfig(cfgPath)
	assert.NoError(t, err)
}
