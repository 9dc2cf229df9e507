package gdrive

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

type fakeUploader struct {
	created   []string
	updated   []string
	payloads  []string
	createErr error
}

func (f *fakeUploader) create(name, _ string, media io.Reader) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	data, _ := io.ReadAll(media)
	f.created = append(f.created, name)
	f.payloads = append(f.payloads, string(data))
	return "id-" + name, nil
}

func (f *fakeUploader) update(fileID string, media io.Reader) error {
	data, _ := io.ReadAll(media)
	f.updated = append(f.updated, fileID)
	f.payloads = append(f.payloads, string(data))
	return nil
}

func TestSyncCreatesThenUpdates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2026-03-01.md")
	if err := os.WriteFile(path, []byte("### first\n"), 0o644); err != nil {
		t.Fatalf("write journal failed: %v", err)
	}

	up := &fakeUploader{}
	s := newSyncer(up, "folder")

	if err := s.Sync(path); err != nil {
		t.Fatalf("first Sync failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("### first\n### second\n"), 0o644); err != nil {
		t.Fatalf("rewrite journal failed: %v", err)
	}
	if err := s.Sync(path); err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}

	if len(up.created) != 1 || up.created[0] != "interview-coach-journal-2026-03-01" {
		t.Fatalf("unexpected creates: %v", up.created)
	}
	if len(up.updated) != 1 || up.updated[0] != "id-interview-coach-journal-2026-03-01" {
		t.Fatalf("unexpected updates: %v", up.updated)
	}
	if up.payloads[1] != "### first\n### second\n" {
		t.Fatalf("expected full journal uploaded, got %q", up.payloads[1])
	}
}

func TestSyncMissingFile(t *testing.T) {
	s := newSyncer(&fakeUploader{}, "folder")
	if err := s.Sync(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Fatal("expected error for missing journal")
	}
}

func TestSyncCreateFailureRetriesCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2026-03-02.md")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write journal failed: %v", err)
	}

	up := &fakeUploader{createErr: errors.New("quota")}
	s := newSyncer(up, "folder")
	if err := s.Sync(path); err == nil {
		t.Fatal("expected create error")
	}

	up.createErr = nil
	if err := s.Sync(path); err != nil {
		t.Fatalf("Sync after recovery failed: %v", err)
	}
	if len(up.created) != 1 || len(up.updated) != 0 {
		t.Fatalf("expected a fresh create after failure, got creates=%v updates=%v", up.created, up.updated)
	}
}
