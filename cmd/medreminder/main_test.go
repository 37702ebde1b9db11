package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "report": false, "seed": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing %s command", name)
		}
	}
}

func TestReportUnknownUser(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENV", "production")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"report", "--user", "ghost"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown user") {
		t.Fatalf("expected unknown user error, got %v", err)
	}
	if strings.Contains(out.String(), "unknown user") {
		t.Errorf("error printed by cobra, main prints it again: %q", out.String())
	}
}

func TestSeedRequiresPassword(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"seed"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected missing --password error")
	}
}
