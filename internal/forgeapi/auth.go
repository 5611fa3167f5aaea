package forgeapi

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	v2Account = "/api/v2/account"
)

type AuthAPI struct {
	client *req.Client
	apiKey string
}

func newAuthAPI(client *req.Client, apiKey string) *AuthAPI {
	return &AuthAPI{
		client: client,
		apiKey: apiKey,
	}
}

// ValidateKey checks the configured access key against the account
// endpoint. Returns ErrMissingKey if no key was configured at all and
// ErrUnauthorized if the server rejects it.
func (a *AuthAPI) ValidateKey(ctx context.Context) (*AccountInfo, error) {
	if a.apiKey == "" {
		return nil, ErrMissingKey
	}

	var info *AccountInfo
	res, err := a.client.R().
		SetContext(ctx).
		SetSuccessResult(&info).
		Get(v2Account)

	if err := handleAPIError(res, err, "validate key"); err != nil {
		return nil, err
	}

	return info, nil
}
