package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"marketchat/internal/domain/entity"
)

// AuthClient is the identity collaborator: it turns a Firebase ID token into
// the stable user id and display name the chat core works with.
type AuthClient struct {
	client *auth.Client
}

func NewAuthClient(client *auth.Client) *AuthClient {
	return &AuthClient{
		client: client,
	}
}

func (c *AuthClient) VerifyToken(ctx context.Context, idToken string) (entity.Identity, error) {
	token, err := c.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return entity.Identity{}, err
	}

	identity := entity.Identity{ID: token.UID}
	if name, ok := token.Claims["name"].(string); ok {
		identity.DisplayName = name
	}
	return identity, nil
}
