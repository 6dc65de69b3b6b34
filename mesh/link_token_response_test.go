package mesh_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finbridge/mesh-link-gateway/internal/errors"
	"github.com/finbridge/mesh-link-gateway/mesh"
)

func TestResolveLinkToken(t *testing.T) {
	t.Run("current field name", func(t *testing.T) {
		token, err := mesh.ResolveLinkToken([]byte(`{"linkToken":"lt-1"}`))
		require.NoError(t, err)
		require.Equal(t, "lt-1", token)
	})

	t.Run("legacy token field", func(t *testing.T) {
		token, err := mesh.ResolveLinkToken([]byte(`{"token":"lt-2"}`))
		require.NoError(t, err)
		require.Equal(t, "lt-2", token)
	})

	t.Run("content envelope", func(t *testing.T) {
		token, err := mesh.ResolveLinkToken([]byte(`{"content":{"linkToken":"abc"}}`))
		require.NoError(t, err)
		require.Equal(t, "abc", token)
	})

	t.Run("linkToken wins over the other shapes", func(t *testing.T) {
		body := []byte(`{"linkToken":"first","token":"second","content":{"linkToken":"third"}}`)
		token, err := mesh.ResolveLinkToken(body)
		require.NoError(t, err)
		require.Equal(t, "first", token)
	})

	t.Run("token wins over content", func(t *testing.T) {
		body := []byte(`{"token":"second","content":{"linkToken":"third"}}`)
		token, err := mesh.ResolveLinkToken(body)
		require.NoError(t, err)
		require.Equal(t, "second", token)
	})

	t.Run("empty fields are skipped", func(t *testing.T) {
		body := []byte(`{"linkToken":"","token":"","content":{"linkToken":"fallback"}}`)
		token, err := mesh.ResolveLinkToken(body)
		require.NoError(t, err)
		require.Equal(t, "fallback", token)
	})

	t.Run("no recognised field is terminal", func(t *testing.T) {
		_, err := mesh.ResolveLinkToken([]byte(`{"something":"else"}`))
		require.Error(t, err)
		require.ErrorIs(t, err, errors.ErrNoLinkToken)
		require.Contains(t, err.Error(), "vendor did not return a linkToken")
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := mesh.ResolveLinkToken([]byte(`not json`))
		require.Error(t, err)
	})
}
