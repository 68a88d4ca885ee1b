package twitch

import (
	"context"
	"errors"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAppToken_Success(t *testing.T) {
	c := NewClient("client-id", "client-secret")
	gock.InterceptClient(c.HTTPClient)
	defer gock.RestoreClient(c.HTTPClient)
	defer gock.Off()

	gock.New(defaultAuthURL).
		Post(tokenEndpoint).
		BodyString("grant_type=client_credentials").
		Reply(200).
		JSON(map[string]any{"access_token": "fresh-token", "expires_in": 5011271, "token_type": "bearer"})

	got, err := c.GetAppToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", got)
	assert.True(t, gock.IsDone())
}

func TestGetAppToken_BadCredentials(t *testing.T) {
	c := NewClient("client-id", "wrong")
	gock.InterceptClient(c.HTTPClient)
	defer gock.RestoreClient(c.HTTPClient)
	defer gock.Off()

	gock.New(defaultAuthURL).
		Post(tokenEndpoint).
		Reply(403).
		JSON(map[string]any{"status": 403, "message": "invalid client secret"})

	got, err := c.GetAppToken(context.Background())
	assert.Empty(t, got)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 403, se.StatusCode)
	assert.Equal(t, "invalid client secret", se.Message)
}

func TestGetAppToken_EmptyBody(t *testing.T) {
	c := NewClient("client-id", "client-secret")
	gock.InterceptClient(c.HTTPClient)
	defer gock.RestoreClient(c.HTTPClient)
	defer gock.Off()

	gock.New(defaultAuthURL).
		Post(tokenEndpoint).
		Reply(200).
		JSON(map[string]string{})

	_, err := c.GetAppToken(context.Background())
	assert.True(t, errors.Is(err, ErrEmptyToken))
}
