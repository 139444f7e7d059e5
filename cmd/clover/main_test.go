package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRunProfiledWritesProfileWhenRunFails(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	if err := runProfiled("cpu", dir, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	info, err := os.Stat(filepath.Join(dir, "cpu.pprof"))
	if err != nil {
		t.Fatalf("profile not written: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("profile is empty")
	}
}

func TestRunProfiledWithoutProfile(t *testing.T) {
	dir := t.TempDir()
	called := false
	if err := runProfiled("", dir, func() error { called = true; return nil }); err != nil || !called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("unexpected files: %v", entries)
	}
}
