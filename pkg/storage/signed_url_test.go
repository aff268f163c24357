package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("job-1", "job-1/directory-export.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	jobID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "job-1/directory-export.csv", path)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Millisecond*10)
	token, _, err := signer.Generate("job-1", "job-1/directory-export.pdf")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	// Cleanup resolves files behind stale tokens, so expiry is skippable.
	jobID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "job-1/directory-export.pdf", path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("job-1", "job-1/directory-export.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 4)

	// Swapping the job id must invalidate the signature.
	forged := strings.Join([]string{"job-2", parts[1], parts[2], parts[3]}, ".")
	_, _, _, err = signer.Parse(forged, false)
	assert.Error(t, err)

	// So must any change to the signature itself.
	_, _, _, err = signer.Parse(strings.Join([]string{parts[0], parts[1], parts[2], "deadbeef"}, "."), false)
	assert.Error(t, err)

	// A different secret cannot validate the token.
	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, _, err = other.Parse(token, false)
	assert.Error(t, err)
}

func TestSignedURLSignerMalformedToken(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	for _, token := range []string{"", "job-1", "job-1.123.path"} {
		_, _, _, err := signer.Parse(token, false)
		assert.Error(t, err, token)
	}
}
