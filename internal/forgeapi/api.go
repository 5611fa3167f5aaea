package forgeapi

import (
	"time"

	"github.com/imroc/req/v3"
	"github.com/forgevtt/forgesync/internal/version"
)

// Client is the main client for interacting with the Forge assets API
type Client struct {
	client  *req.Client
	baseURL string
	Assets  *AssetsAPI
	Auth    *AuthAPI
}

// New creates a new Forge API client
func New(baseURL string, apiKey string) *Client {
	client := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(2).
		SetCommonRetryFixedInterval(1*time.Second).
		SetCommonHeader(HeaderUserAgent, "ForgeSync/"+version.Version).
		SetCommonHeader(HeaderAccessKey, apiKey).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{
		client:  client,
		baseURL: baseURL,
		Assets:  newAssetsAPI(client),
		Auth:    newAuthAPI(client, apiKey),
	}
}

// Close terminates idle connections and cleans up resources
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
