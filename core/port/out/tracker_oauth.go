package out

import "context"

// RefreshedToken is what the provider token endpoint returns for a refresh grant.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    int64
}

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshedToken, error)
}

// TokenRevoker revokes a token at the provider. Used when replacing credentials.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string) error
}
