package sync

import (
	"context"
	"io"

	"github.com/forgevtt/forgesync/internal/forgeapi"
)

// RemoteLibrary is the slice of the Forge API the engine needs. Injected
// so tests can run against an in-memory double.
type RemoteLibrary interface {
	ValidateKey(ctx context.Context) (*forgeapi.AccountInfo, error)
	ListAssets(ctx context.Context) ([]*forgeapi.Asset, error)
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// forgeRemote adapts *forgeapi.Client to RemoteLibrary.
type forgeRemote struct {
	client *forgeapi.Client
}

// NewRemoteLibrary wraps a Forge API client for use by the engine.
func NewRemoteLibrary(client *forgeapi.Client) RemoteLibrary {
	return &forgeRemote{client: client}
}

func (r *forgeRemote) ValidateKey(ctx context.Context) (*forgeapi.AccountInfo, error) {
	return r.client.Auth.ValidateKey(ctx)
}

func (r *forgeRemote) ListAssets(ctx context.Context) ([]*forgeapi.Asset, error) {
	return r.client.Assets.ListAll(ctx)
}

func (r *forgeRemote) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	return r.client.Assets.Download(ctx, url)
}
