package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/harrisonrobin/touchgrass/pkg/logging"
	"github.com/harrisonrobin/touchgrass/pkg/model"
	"github.com/harrisonrobin/touchgrass/pkg/reconcile"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const (
	appDataFolder = "appDataFolder"
	mimeJSON      = "application/json"
)

// DriveClient stores each identity's snapshot as a JSON file in the Drive application-data folder.
type DriveClient struct {
	srv *drive.Service
	log *logging.Logger
	mu sync.Mutex
	// ids caches document name -> Drive file id for the life of the client.
	ids map[string]string
}

var _ reconcile.Remote = (*DriveClient)(nil)

// NewDriveClient wraps an authenticated Drive service.
func NewDriveClient(srv *drive.Service, log *logging.Logger) *DriveClient {
	if log == nil {
		log = logging.Discard()
	}
	return &DriveClient{
		srv: srv,
		log: log.WithComponent(logging.ComponentRemote),
		ids: make(map[string]string),
	}
}

func fileName(identityID string) string {
	return reconcile.DocumentName(identityID) + ".json"
}

// Fetch downloads the identity's snapshot.
func (c *DriveClient) Fetch(ctx context.Context, identityID string) (model.Snapshot, bool, error) {
	fileID, err := c.findFile(ctx, fileName(identityID))
	if err != nil {
		return model.Snapshot{}, false, err
	}
	if fileID == "" {
		return model.Snapshot{}, false, nil
	}

	resp, err := c.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		if isNotFound(err) {
			c.forget(fileName(identityID))
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, fmt.Errorf("unable to download snapshot: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("unable to read snapshot: %w", err)
	}
	snap, err := reconcile.DecodeSnapshot(b)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	return snap, true, nil
}

// Push creates the snapshot file on first use and overwrites its content afterwards.
func (c *DriveClient) Push(ctx context.Context, identityID string, snap model.Snapshot) error {
	b, err := reconcile.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	name := fileName(identityID)
	fileID, err := c.findFile(ctx, name)
	if err != nil {
		return err
	}

	if fileID != "" {
		_, err = c.srv.Files.Update(fileID, &drive.File{}).
			Media(bytes.NewReader(b), googleapi.ContentType(mimeJSON)).
			Context(ctx).
			Do()
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return fmt.Errorf("unable to update snapshot: %w", err)
		}
		// The file vanished since it was looked up; fall through and recreate it.
		c.forget(name)
	}

	created, err := c.srv.Files.Create(&drive.File{
		Name:     name,
		Parents:  []string{appDataFolder},
		MimeType: mimeJSON,
	}).
		Media(bytes.NewReader(b), googleapi.ContentType(mimeJSON)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("unable to create snapshot: %w", err)
	}
	c.remember(name, created.Id)
	c.log.Debug("created snapshot file", "file_id", created.Id)
	return nil
}

// findFile looks the document up by name, returning "" when it does not exist.
func (c *DriveClient) findFile(ctx context.Context, name string) (string, error) {
	if id, ok := c.cached(name); ok {
		return id, nil
	}

	q := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))
	list, err := c.srv.Files.List().
		Spaces(appDataFolder).
		Q(q).
		Fields("files(id, name, modifiedTime)").
		OrderBy("modifiedTime desc").
		PageSize(10).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("unable to search snapshot: %w", err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	if len(list.Files) > 1 {
		c.log.Warn("several snapshot files found, using the newest", "name", name, "count", len(list.Files))
	}
	c.remember(name, list.Files[0].Id)
	return list.Files[0].Id, nil
}

func (c *DriveClient) cached(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[name]
	return id, ok
}

func (c *DriveClient) remember(name, id string) {
	c.mu.Lock()
	c.ids[name] = id
	c.mu.Unlock()
}

func (c *DriveClient) forget(name string) {
	c.mu.Lock()
	delete(c.ids, name)
	c.mu.Unlock()
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound
	}
	return false
}
