package forgeapi

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/imroc/req/v3"
)

const (
	v2Assets = "/api/v2/assets"

	// defaultPageSize keeps a single listing response well under the API
	// gateway's payload cap even for libraries with very long asset names.
	defaultPageSize = 1000
)

type AssetsAPI struct {
	client *req.Client
}

func newAssetsAPI(client *req.Client) *AssetsAPI {
	return &AssetsAPI{
		client: client,
	}
}

// List fetches one page of the asset library listing
func (a *AssetsAPI) List(ctx context.Context, params *ListAssetsParams) (resp *ListAssetsResponse, err error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	res, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("cursor", params.Cursor).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetSuccessResult(&resp).
		Get(v2Assets)

	if err := handleAPIError(res, err, "list assets"); err != nil {
		return nil, err
	}

	return resp, nil
}

// ListAll pages through the full asset library listing
func (a *AssetsAPI) ListAll(ctx context.Context) ([]*Asset, error) {
	var all []*Asset
	cursor := ""
	for {
		page, err := a.List(ctx, &ListAssetsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Assets...)
		if page.Cursor == "" {
			return all, nil
		}
		cursor = page.Cursor
	}
}

// Download streams the blob behind an asset URL. The URL is absolute
// (typically a CDN address), not relative to the API base.
func (a *AssetsAPI) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	res, err := a.client.R().
		SetContext(ctx).
		// transfers are retried by the caller as a whole; the
		// client-level retry must not stack on top of that
		SetRetryCount(0).
		DisableAutoReadResponse().
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	if res.IsErrorState() {
		res.Body.Close()
		return nil, fmt.Errorf("download %s: %w (%s)", url, ErrNotFound, res.Status)
	}
	return res.Body, nil
}
