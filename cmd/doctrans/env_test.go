package main

import (
	"bytes"
	"strings"
	"testing"
)

func withEnvStatusStubs(t *testing.T, status bool, envKey string) (*keyStubs, func()) {
	t.Helper()
	stubs := &keyStubs{}

	prevStatus := getStatus
	prevEnv := getEnvKey

	getStatus = func() bool {
		return status
	}
	getEnvKey = func() (string, bool) {
		stubs.envCalls++
		if envKey == "" {
			return "", false
		}
		return envKey, true
	}

	restore := func() {
		getStatus = prevStatus
		getEnvKey = prevEnv
	}

	return stubs, restore
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestEnv_StatusKeychain(t *testing.T) {
	_, restore := withEnvStatusStubs(t, true, "sk-env-secret")
	defer restore()

	out, err := executeCommand(t, "env", "status")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "Found (source=Keychain)") {
		t.Fatalf("expected keychain source, got: %s", out)
	}
	if strings.Contains(out, "sk-env-secret") {
		t.Fatalf("output leaked env key")
	}
}

func TestEnv_StatusEnvOnly(t *testing.T) {
	_, restore := withEnvStatusStubs(t, false, "sk-env-secret")
	defer restore()

	out, err := executeCommand(t, "env", "status")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "source=Environment Variable") {
		t.Fatalf("expected env source, got: %s", out)
	}
	if strings.Contains(out, "sk-env-secret") {
		t.Fatalf("output leaked env key")
	}
}

func TestEnv_StatusNotFound(t *testing.T) {
	_, restore := withEnvStatusStubs(t, false, "")
	defer restore()

	out, err := executeCommand(t, "env", "status")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "Not Found") {
		t.Fatalf("expected not-found status, got: %s", out)
	}
}

func TestChunk_RequiresUser(t *testing.T) {
	_, err := executeCommand(t, "chunk", "input.txt", "--bucket", "docs", "--target", "es")
	if err == nil || !strings.Contains(err.Error(), "--user") {
		t.Fatalf("expected missing --user error, got: %v", err)
	}
}

func TestTranslate_RequiresJobAndUser(t *testing.T) {
	_, err := executeCommand(t, "translate", "--bucket", "docs")
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Fatalf("expected missing flags error, got: %v", err)
	}
}
