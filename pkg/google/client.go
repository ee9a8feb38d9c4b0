package google

import (
	"context"
	"fmt"
	"net/http"

	"github.com/harrisonrobin/touchgrass/pkg/logging"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// NewClient creates a Drive-backed remote from an authenticated HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, log *logging.Logger) (*DriveClient, error) {
	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}
	return NewDriveClient(srv, log), nil
}
