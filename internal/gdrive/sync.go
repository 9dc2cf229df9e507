// Package gdrive backs up the daily practice journal to a Google Drive folder.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// uploader is the slice of the Drive API the syncer needs.
type uploader interface {
	create(name, folderID string, media io.Reader) (string, error)
	update(fileID string, media io.Reader) error
}

type driveUploader struct {
	service *drive.Service
}

func (d driveUploader) create(name, folderID string, media io.Reader) (string, error) {
	doc, err := d.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.document",
		Parents:  []string{folderID},
	}).Media(media).Do()
	if err != nil {
		return "", err
	}
	return doc.Id, nil
}

func (d driveUploader) update(fileID string, media io.Reader) error {
	_, err := d.service.Files.Update(fileID, &drive.File{}).Media(media).Do()
	return err
}

// Syncer uploads one Drive document per journal day, updating it in place on
// later syncs of the same day.
type Syncer struct {
	up       uploader
	folderID string

	mu      sync.Mutex
	fileIDs map[string]string
}

func NewSyncer(ctx context.Context, credPath, folderID string) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newSyncer(driveUploader{service: svc}, folderID), nil
}

func newSyncer(up uploader, folderID string) *Syncer {
	return &Syncer{up: up, folderID: folderID, fileIDs: make(map[string]string)}
}

// Sync uploads the journal file at localPath. The file's base name (the
// journal date) names the Drive document.
func (s *Syncer) Sync(localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	date := strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))

	if fileID, ok := s.fileIDs[date]; ok {
		if err := s.up.update(fileID, f); err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	id, err := s.up.create("interview-coach-journal-"+date, s.folderID, f)
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}
	s.fileIDs[date] = id
	return nil
}

// Run syncs the current journal every interval until ctx is done. Days
// without a journal file are skipped.
func (s *Syncer) Run(ctx context.Context, interval time.Duration, currentPath func() string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			path := currentPath()
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := s.Sync(path); err != nil {
				slog.Warn("gdrive: journal sync failed", "path", path, "error", err)
			}
		}
	}
}
