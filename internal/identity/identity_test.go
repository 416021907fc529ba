package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(t *testing.T) *TokenCodec {
	t.Helper()
	key := []byte("0123456789abcdef0123456789abcdef")
	codec, err := NewTokenCodec(key)
	require.NoError(t, err)
	return codec
}

func TestHash_Deterministic(t *testing.T) {
	first, err := Hash("user@example.com")
	require.NoError(t, err)

	second, err := Hash("user@example.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.Equal(t, strings.ToLower(first), first)
}

func TestHash_Normalization(t *testing.T) {
	base, err := Hash("user@example.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
	}{
		{"uppercase", "User@Example.COM"},
		{"leading and trailing whitespace", "  user@example.com  "},
		{"mixed", "\tUSER@example.Com "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Hash(tt.input)
			require.NoError(t, err)
			assert.Equal(t, base, got)
		})
	}
}

func TestHash_DistinctInputs(t *testing.T) {
	a, err := Hash("a@example.com")
	require.NoError(t, err)
	b, err := Hash("b@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHash_InvalidInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		_, err := Hash(input)
		assert.ErrorIs(t, err, ErrInvalidInput, "input %q", input)
	}
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := testCodec(t)

	emails := []string{
		"user@example.com",
		"User@Example.COM", // round-trip preserves exact casing
		"first.last+tag@sub.domain.co.uk",
	}

	for _, email := range emails {
		token, err := codec.Encrypt(email)
		require.NoError(t, err)
		assert.NotContains(t, token, email)

		got, err := codec.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, email, got)
	}
}

func TestTokenCodec_TokensAreURLSafe(t *testing.T) {
	codec := testCodec(t)

	token, err := codec.Encrypt("user@example.com")
	require.NoError(t, err)

	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")
}

func TestTokenCodec_Decrypt_Malformed(t *testing.T) {
	codec := testCodec(t)

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "not-a-valid-token!!!"},
		{"empty", ""},
		{"too short", "YWJj"},
		{"random garbage", "aGVsbG8gd29ybGQgdGhpcyBpcyBub3QgYSB0b2tlbg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decrypt(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenCodec_Decrypt_Tampered(t *testing.T) {
	codec := testCodec(t)

	token, err := codec.Encrypt("user@example.com")
	require.NoError(t, err)

	// Flip a character in the middle of the token.
	mid := len(token) / 2
	replacement := byte('A')
	if token[mid] == 'A' {
		replacement = 'B'
	}
	tampered := token[:mid] + string(replacement) + token[mid+1:]

	_, err = codec.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenCodec_DifferentKeysCannotDecrypt(t *testing.T) {
	codec := testCodec(t)

	other, err := NewTokenCodec([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	token, err := codec.Encrypt("user@example.com")
	require.NoError(t, err)

	_, err = other.Decrypt(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenCodec_KeyValidation(t *testing.T) {
	_, err := NewTokenCodec([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewTokenCodecFromHex("zzzz")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewTokenCodecFromHex("00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	assert.NoError(t, err)
}
