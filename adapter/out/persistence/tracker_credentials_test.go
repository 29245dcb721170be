package persistence

import (
	"strings"
	"testing"

	"tracker_server/core/domain"
	"tracker_server/pkg/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	enc, err := crypto.NewEncryptor([]byte("test-encryption-key"))
	require.NoError(t, err)
	return enc
}

func TestCredentialCodec_Sealed(t *testing.T) {
	codec := credentialCodec{enc: testEncryptor(t)}
	expires := int64(3599)
	creds := domain.Credentials{AccessToken: "at", RefreshToken: "rt", ExpiresIn: &expires, Email: "me@example.com"}

	encoded, err := codec.encode(creds)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, `"enc:v1:`))
	assert.NotContains(t, encoded, "rt")

	decoded, err := codec.decode([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, creds, decoded)
}

func TestCredentialCodec_Decode(t *testing.T) {
	sealed, err := credentialCodec{enc: testEncryptor(t)}.encode(domain.Credentials{AccessToken: "at"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		codec   credentialCodec
		raw     string
		want    string
		wantErr error
	}{
		{"legacy plaintext with key", credentialCodec{enc: testEncryptor(t)}, `{"access_token":"legacy"}`, "legacy", nil},
		{"plaintext without key", credentialCodec{}, `{"access_token":"plain"}`, "plain", nil},
		{"empty column", credentialCodec{}, ``, "", nil},
		{"sealed without key", credentialCodec{}, sealed, "", ErrSealedWithoutKey},
		{"unknown string", credentialCodec{enc: testEncryptor(t)}, `"hello"`, "", crypto.ErrInvalidCiphertext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.codec.decode([]byte(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.AccessToken)
		})
	}
}

func TestCredentialCodec_PlainWhenNoKey(t *testing.T) {
	encoded, err := credentialCodec{}.encode(domain.Credentials{AccessToken: "at"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"at"}`, encoded)
}
