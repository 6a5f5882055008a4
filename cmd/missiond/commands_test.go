package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCatalogCommandPrintsDefaults(t *testing.T) {
	t.Setenv("MISSION_CATALOG_PATH", "")
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"catalog"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "login (immediate): daily_logins[count]") {
		t.Fatalf("login line missing:\n%s", text)
	}
	if !strings.Contains(text, "send_tip: tips_sent[count], dgt_spent_tips[amount]") {
		t.Fatalf("send_tip line missing:\n%s", text)
	}
}

func TestCatalogCommandRejectsBadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  x: {kind: bogus}\nactions:\n  a: [x]\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"catalog", "--path", path})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("execute: want error for unknown rule kind")
	}
}
