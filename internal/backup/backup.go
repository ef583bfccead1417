// Package backup mirrors the daily markdown transcripts to Google Drive.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

var retryDelays = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}

type Syncer struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex

	upload func(localPath, date string) error
	sleep  func(time.Duration)
}

func NewSyncer(ctx context.Context, credPath, folderID string) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithParams(ctx, creds, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	s := &Syncer{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
		sleep:    time.Sleep,
	}
	s.upload = s.driveUpload
	return s, nil
}

// Sync pushes the local transcript for date to Drive, retrying transient
// failures a few times before giving up.
func (s *Syncer) Sync(localPath, date string) error {
	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			s.sleep(retryDelays[attempt-1])
		}
		if lastErr = s.upload(localPath, date); lastErr == nil {
			return nil
		}
		slog.Warn("drive sync attempt failed", "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("sync %s after %d attempts: %w", localPath, len(retryDelays)+1, lastErr)
}

func (s *Syncer) driveUpload(localPath, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	name := fmt.Sprintf("callbridge-%s", date)

	if fileID, ok := s.fileIDs[date]; ok {
		_, err = s.service.Files.Update(fileID, &drive.File{}).Media(f).Do()
		if err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	doc, err := s.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.document",
		Parents:  []string{s.folderID},
	}).Media(f).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	s.fileIDs[date] = doc.Id
	return nil
}

// Run syncs the file returned by pathFor every interval until ctx is
// cancelled. Missing files (days with no sessions) are skipped.
func (s *Syncer) Run(ctx context.Context, interval time.Duration, pathFor func() string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			path := pathFor()
			if _, err := os.Stat(path); err != nil {
				continue
			}
			date := time.Now().Format("2006-01-02")
			if err := s.Sync(path, date); err != nil {
				slog.Error("drive sync failed", "path", path, "error", err)
			}
		}
	}
}
