package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "application.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
appName: xqmahjong
port: 4001
metricPort: 5400
log:
  level: debug
game:
  turnSeconds: 45
  claimSeconds: 20
`)
	if err := Load(path, nil); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if Conf.Port != 4001 || Conf.LogConf.Level != "debug" {
		t.Fatalf("explicit fields not applied: %+v", Conf)
	}
	if Conf.GameConf.TurnSeconds != 45 {
		t.Fatalf("turnSeconds expected 45, got %d", Conf.GameConf.TurnSeconds)
	}
	// 未写的字段保持缺省
	if Conf.GameConf.AiThinkMinMs != 700 || Conf.GameConf.AiThinkMaxMs != 2000 {
		t.Fatalf("defaults not kept: %+v", Conf.GameConf)
	}
	if Conf.GameConf.NextRoundSeconds != 10 {
		t.Fatalf("nextRoundSeconds default expected 10, got %d", Conf.GameConf.NextRoundSeconds)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := writeConfig(t, `
appName: xqmahjong
port: 3001
game:
  turnSeconds: 90
`)
	if err := Load(path, nil); err == nil {
		t.Fatalf("turnSeconds above 60 must be rejected")
	}

	path = writeConfig(t, `
appName: xqmahjong
port: 0
`)
	if err := Load(path, nil); err == nil {
		t.Fatalf("port 0 must be rejected")
	}

	path = writeConfig(t, `
appName: xqmahjong
port: 3001
game:
  aiThinkMinMs: 500
  aiThinkMaxMs: 100
`)
	if err := Load(path, nil); err == nil {
		t.Fatalf("inverted AI think range must be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.yml"), nil); err == nil {
		t.Fatalf("missing file must error")
	}
}
