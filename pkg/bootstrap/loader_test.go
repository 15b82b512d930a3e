package bootstrap

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const sampleYAML = `
name: test-bootstrap
version: 2.0.0
subjectPrefix: svc.fetch
handlers:
  users:
    version: 1.4.0
    timeoutMs: 2500
  orders:
    subject: svc.orders.v2
  legacy:
    disabled: true
aliases:
  customers: users
  old: legacy
changeEventSubjects:
  global: custom.changed
`

const sampleJSON = `{
  "name": "test-bootstrap",
  "version": "2.0.0",
  "handlers": {
    "users": {"version": "1.4.0", "timeoutMs": 2500},
    "orders": {"subject": "svc.orders.v2"}
  },
  "aliases": {"customers": "users"}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("bootstrap:loader_test - write %s: %v", p, err)
	}
	return p
}

func TestLoadBootstrapConfig_YAML(t *testing.T) {
	cfg, err := LoadBootstrapConfig(writeFile(t, "bootstrap.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("bootstrap:loader_test - load failed: %v", err)
	}
	if cfg.Name != "test-bootstrap" || cfg.SubjectPrefix != "svc.fetch" {
		t.Errorf("bootstrap:loader_test - cfg = %+v", cfg)
	}
	users := cfg.Handlers["users"]
	if users.Version != "1.4.0" || users.Timeout() != 2500*time.Millisecond {
		t.Errorf("bootstrap:loader_test - users = %+v", users)
	}
	if cfg.Handlers["orders"].Subject != "svc.orders.v2" {
		t.Errorf("bootstrap:loader_test - orders subject = %q", cfg.Handlers["orders"].Subject)
	}
	if cfg.ChangeEvents.Global != "custom.changed" {
		t.Errorf("bootstrap:loader_test - global subject = %q", cfg.ChangeEvents.Global)
	}
	if cfg.ChangeEvents.Pattern != "resource.changed.{handler}.{operation}" {
		t.Errorf("bootstrap:loader_test - pattern = %q, want default", cfg.ChangeEvents.Pattern)
	}
}

func TestLoadBootstrapConfig_JSON(t *testing.T) {
	cfg, err := LoadBootstrapConfig(writeFile(t, "bootstrap.json", sampleJSON))
	if err != nil {
		t.Fatalf("bootstrap:loader_test - load failed: %v", err)
	}
	if len(cfg.Handlers) != 2 {
		t.Errorf("bootstrap:loader_test - handlers = %d, want 2", len(cfg.Handlers))
	}
	if cfg.Aliases["customers"] != "users" {
		t.Errorf("bootstrap:loader_test - aliases = %v", cfg.Aliases)
	}
}

func TestLoadBootstrapConfig_FallsBack(t *testing.T) {
	t.Setenv("FETCHER_BOOTSTRAP_FILE", "")
	t.Chdir(t.TempDir())

	cfg, err := LoadBootstrapConfig()
	if err != nil {
		t.Fatalf("bootstrap:loader_test - load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, GetDefaultBootstrapConfig()) {
		t.Errorf("bootstrap:loader_test - expected default config, got %+v", cfg)
	}
}

func TestLoadBootstrapConfig_SkipsBrokenWellKnownFile(t *testing.T) {
	t.Setenv("FETCHER_BOOTSTRAP_FILE", "")
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, "bootstrap.yaml"), []byte("handlers: [oops"), 0o600); err != nil {
		t.Fatalf("bootstrap:loader_test - write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bootstrap.json"), []byte(sampleJSON), 0o600); err != nil {
		t.Fatalf("bootstrap:loader_test - write: %v", err)
	}

	cfg, err := LoadBootstrapConfig()
	if err != nil {
		t.Fatalf("bootstrap:loader_test - load failed: %v", err)
	}
	if len(cfg.Handlers) != 2 {
		t.Errorf("bootstrap:loader_test - handlers = %d, want 2 from bootstrap.json", len(cfg.Handlers))
	}
}

func TestLoadBootstrapConfig_ExplicitFileErrors(t *testing.T) {
	t.Setenv("FETCHER_BOOTSTRAP_FILE", "")

	if _, err := LoadBootstrapConfig(writeFile(t, "broken.json", "{not json")); err == nil {
		t.Error("bootstrap:loader_test - expected error for unparsable explicit file")
	}
	if _, err := LoadBootstrapConfig("/does/not/exist.yaml"); err == nil {
		t.Error("bootstrap:loader_test - expected error for missing explicit file")
	}

	t.Setenv("FETCHER_BOOTSTRAP_FILE", writeFile(t, "env.json", "{not json"))
	if _, err := LoadBootstrapConfig(); err == nil {
		t.Error("bootstrap:loader_test - expected error for unparsable FETCHER_BOOTSTRAP_FILE")
	}
}

func TestLoadBootstrapConfig_MergesFilesInOrder(t *testing.T) {
	t.Setenv("FETCHER_BOOTSTRAP_FILE", "")

	base := writeFile(t, "base.yaml", sampleYAML)
	override := writeFile(t, "override.json", `{"handlers":{"users":{"version":"9.0.0"},"billing":{}},"changeEventSubjects":{"pattern":"audit.{operation}.{handler}"}}`)
	cfg, err := LoadBootstrapConfig(base, override)
	if err != nil {
		t.Fatalf("bootstrap:loader_test - load failed: %v", err)
	}
	if cfg.Name != "test-bootstrap" || cfg.SubjectPrefix != "svc.fetch" {
		t.Errorf("bootstrap:loader_test - base settings lost: %+v", cfg)
	}
	if cfg.Handlers["users"].Version != "9.0.0" {
		t.Errorf("bootstrap:loader_test - users = %+v, want override version", cfg.Handlers["users"])
	}
	if _, ok := cfg.Handlers["orders"]; !ok {
		t.Error("bootstrap:loader_test - orders from base file missing")
	}
	if _, ok := cfg.Handlers["billing"]; !ok {
		t.Error("bootstrap:loader_test - billing from override missing")
	}
	if cfg.ChangeEvents.Global != "custom.changed" || cfg.ChangeEvents.Pattern != "audit.{operation}.{handler}" {
		t.Errorf("bootstrap:loader_test - change events = %+v", cfg.ChangeEvents)
	}
}

func TestLoadBootstrapConfig_Env(t *testing.T) {
	t.Setenv("FETCHER_BOOTSTRAP_FILE", writeFile(t, "env.yml", sampleYAML))
	cfg, err := LoadBootstrapConfig()
	if err != nil {
		t.Fatalf("bootstrap:loader_test - load failed: %v", err)
	}
	if cfg.Name != "test-bootstrap" {
		t.Errorf("bootstrap:loader_test - name = %q", cfg.Name)
	}
}

func TestParseBootstrapConfig_InvalidName(t *testing.T) {
	_, err := ParseBootstrapConfig("x.json", []byte(`{"handlers":{"users.v2":{}}}`))
	if err == nil {
		t.Error("bootstrap:loader_test - expected error for dotted handler name")
	}
}

func TestCreateResolvedBootstrap(t *testing.T) {
	cfg, err := ParseBootstrapConfig("b.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("bootstrap:loader_test - parse failed: %v", err)
	}
	resolved := CreateResolvedBootstrap(cfg)

	if h := resolved.Get("users"); h == nil || h.Version != "1.4.0" {
		t.Errorf("bootstrap:loader_test - Get(users) = %+v", h)
	}
	if h := resolved.Get("customers"); h == nil || h.Version != "1.4.0" {
		t.Errorf("bootstrap:loader_test - alias lookup = %+v", h)
	}
	if resolved.Get("legacy") != nil || resolved.Get("old") != nil {
		t.Error("bootstrap:loader_test - disabled handler must not resolve")
	}
	if resolved.Get("nonexistent") != nil {
		t.Error("bootstrap:loader_test - expected nil for unknown handler")
	}

	if got := resolved.Names(); !reflect.DeepEqual(got, []string{"orders", "users"}) {
		t.Errorf("bootstrap:loader_test - Names = %v", got)
	}
	if got := resolved.Aliases(); !reflect.DeepEqual(got, []string{"customers"}) {
		t.Errorf("bootstrap:loader_test - Aliases = %v", got)
	}
	if resolved.ResolveAlias("customers") != "users" || resolved.ResolveAlias("orders") != "orders" {
		t.Error("bootstrap:loader_test - ResolveAlias mismatch")
	}
	if resolved.SubjectPrefix() != "svc.fetch" || resolved.GlobalChangeSubject() != "custom.changed" {
		t.Error("bootstrap:loader_test - subject settings mismatch")
	}
	if resolved.ChangeSubjectPattern() != "" {
		t.Errorf("bootstrap:loader_test - pattern = %q, want unset", resolved.ChangeSubjectPattern())
	}
}

func TestMergeBootstrapConfigs(t *testing.T) {
	base := GetDefaultBootstrapConfig()
	base.Handlers["users"] = RemoteHandler{Version: "1.0.0"}
	override := &BootstrapConfig{
		Handlers: map[string]RemoteHandler{
			"users":  {Version: "2.0.0"},
			"orders": {},
		},
		Aliases:       map[string]string{"customers": "users"},
		SubjectPrefix: "svc.fetch",
	}

	merged := MergeBootstrapConfigs(base, override)

	if merged.Handlers["users"].Version != "2.0.0" {
		t.Error("bootstrap:loader_test - override must replace handler entries")
	}
	if _, ok := merged.Handlers["orders"]; !ok {
		t.Error("bootstrap:loader_test - expected orders from override")
	}
	if merged.Aliases["customers"] != "users" || merged.SubjectPrefix != "svc.fetch" {
		t.Error("bootstrap:loader_test - aliases/prefix not merged")
	}
	if merged.ChangeEvents.Global != "resource.changed" {
		t.Error("bootstrap:loader_test - base change subject must remain")
	}
	if base.Handlers["users"].Version != "1.0.0" {
		t.Error("bootstrap:loader_test - base must not be mutated")
	}
}
