package main

import (
	"context"
	"strings"
	"testing"

	"darkroom/internal/config"
	"darkroom/internal/errstore"
)

func seedFailure(t *testing.T, configPath, identifier, reason string) {
	t.Helper()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := errstore.Open(cfg)
	if err != nil {
		t.Fatalf("open failure store: %v", err)
	}
	defer store.Close()
	if err := store.Set(context.Background(), identifier, reason); err != nil {
		t.Fatalf("seed failure: %v", err)
	}
}

func TestErrorsListEmpty(t *testing.T) {
	path := writeTestConfig(t)

	out, err := executeCommand(t, "--config", path, "errors")
	if err != nil {
		t.Fatalf("errors: %v", err)
	}
	if !strings.Contains(out, "No recorded failures") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestErrorsListShowsRecordedFailures(t *testing.T) {
	path := writeTestConfig(t)
	seedFailure(t, path, "media://broken", "sensor timeout")

	out, err := executeCommand(t, "--config", path, "errors")
	if err != nil {
		t.Fatalf("errors: %v", err)
	}
	if !strings.Contains(out, "media://broken") || !strings.Contains(out, "sensor timeout") {
		t.Fatalf("listing missing recorded failure:\n%s", out)
	}
}

func TestErrorsClearByIdentifier(t *testing.T) {
	path := writeTestConfig(t)
	seedFailure(t, path, "media://broken", "sensor timeout")

	if _, err := executeCommand(t, "--config", path, "errors", "clear", "media://broken"); err != nil {
		t.Fatalf("errors clear: %v", err)
	}

	out, err := executeCommand(t, "--config", path, "errors")
	if err != nil {
		t.Fatalf("errors: %v", err)
	}
	if !strings.Contains(out, "No recorded failures") {
		t.Fatalf("failure survived clear:\n%s", out)
	}
}

func TestErrorsClearAll(t *testing.T) {
	path := writeTestConfig(t)
	seedFailure(t, path, "media://one", "first")
	seedFailure(t, path, "media://two", "second")

	out, err := executeCommand(t, "--config", path, "errors", "clear", "--all")
	if err != nil {
		t.Fatalf("errors clear --all: %v", err)
	}
	if !strings.Contains(out, "Cleared 2") {
		t.Fatalf("unexpected clear output:\n%s", out)
	}
}

func TestErrorsClearRequiresTarget(t *testing.T) {
	path := writeTestConfig(t)

	if _, err := executeCommand(t, "--config", path, "errors", "clear"); err == nil {
		t.Fatal("expected error when neither identifiers nor --all given")
	}
}
