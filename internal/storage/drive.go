package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMIME = "application/vnd.google-apps.folder"
	xlsxMIME   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	csvMIME    = "text/csv"
	binaryMIME = "application/octet-stream"
)

// DriveStore keeps documents in Google Drive under a root folder. All
// paths are resolved segment by segment from the root folder; folders
// are created on demand when writing.
type DriveStore struct {
	svc    *drive.Service
	rootID string
	logger *slog.Logger

	// folder name+parent -> id, avoids repeated list calls per run
	folderIDs map[string]string
}

// NewDriveStore authenticates with a service-account credentials file
// and resolves (or creates) the root folder. When rootFolderID is set
// it wins over rootFolderName.
func NewDriveStore(ctx context.Context, credentialsFile, rootFolderName, rootFolderID string, logger *slog.Logger) (*DriveStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsFile), option.WithScopes(drive.DriveScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	s := &DriveStore{
		svc:       svc,
		logger:    logger.With(slog.String("store", "drive")),
		folderIDs: make(map[string]string),
	}

	if rootFolderID != "" {
		s.rootID = rootFolderID
	} else {
		id, err := s.getOrCreateFolder(ctx, rootFolderName, "root")
		if err != nil {
			return nil, fmt.Errorf("resolve root folder %q: %w", rootFolderName, err)
		}
		s.rootID = id
	}
	s.logger.Info("drive store ready", slog.String("root_id", s.rootID))
	return s, nil
}

// escapeQuery escapes single quotes for Drive list queries.
func escapeQuery(name string) string {
	return strings.ReplaceAll(name, "'", "\\'")
}

func (s *DriveStore) getOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	cacheKey := parentID + "/" + name
	if id, ok := s.folderIDs[cacheKey]; ok {
		return id, nil
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), folderMIME, parentID)
	list, err := s.svc.Files.List().Q(q).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) > 0 {
		s.folderIDs[cacheKey] = list.Files[0].Id
		return list.Files[0].Id, nil
	}

	f, err := s.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMIME,
		Parents:  []string{parentID},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	s.logger.Info("drive folder created", slog.String("name", name), slog.String("id", f.Id))
	s.folderIDs[cacheKey] = f.Id
	return f.Id, nil
}

// resolveID walks path segments from the root. Returns "" when any
// segment is missing.
func (s *DriveStore) resolveID(ctx context.Context, path string) (string, error) {
	id := s.rootID
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
			escapeQuery(part), id)
		list, err := s.svc.Files.List().Q(q).Fields("files(id)").Context(ctx).Do()
		if err != nil {
			return "", err
		}
		if len(list.Files) == 0 {
			return "", nil
		}
		id = list.Files[0].Id
	}
	return id, nil
}

// ensureParents creates the directory chain above the file named by
// path and returns the id of the last folder.
func (s *DriveStore) ensureParents(ctx context.Context, path string) (string, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	id := s.rootID
	for _, part := range parts[:len(parts)-1] {
		var err error
		id, err = s.getOrCreateFolder(ctx, part, id)
		if err != nil {
			return "", err
		}
	}
	return id, nil
}

func (s *DriveStore) Exists(ctx context.Context, path string) (bool, error) {
	id, err := s.resolveID(ctx, path)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

func (s *DriveStore) Read(ctx context.Context, path string) ([]byte, error) {
	id, err := s.resolveID(ctx, path)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrNotExist
	}
	resp, err := s.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *DriveStore) Write(ctx context.Context, path string, data []byte) error {
	parentID, err := s.ensureParents(ctx, path)
	if err != nil {
		return err
	}
	name := strings.Trim(path, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), parentID)
	list, err := s.svc.Files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return err
	}

	media := bytes.NewReader(data)
	if len(list.Files) > 0 {
		_, err = s.svc.Files.Update(list.Files[0].Id, &drive.File{}).
			Media(media).Context(ctx).Do()
	} else {
		_, err = s.svc.Files.Create(&drive.File{
			Name:     name,
			MimeType: mimeFor(name),
			Parents:  []string{parentID},
		}).Media(media).Fields("id").Context(ctx).Do()
	}
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	s.logger.Debug("file uploaded", slog.String("path", path), slog.Int("bytes", len(data)))
	return nil
}

func (s *DriveStore) EnsureDir(ctx context.Context, path string) error {
	id := s.rootID
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		var err error
		id, err = s.getOrCreateFolder(ctx, part, id)
		if err != nil {
			return err
		}
	}
	return nil
}

func mimeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".xlsx"):
		return xlsxMIME
	case strings.HasSuffix(name, ".csv"):
		return csvMIME
	default:
		return binaryMIME
	}
}
