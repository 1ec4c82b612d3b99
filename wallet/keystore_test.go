package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeystoreManager_SaveLoad(t *testing.T) {
	km, err := NewKeystoreManager(t.TempDir(), WithLightScrypt())
	require.NoError(t, err)

	w, err := NewWallet()
	require.NoError(t, err)

	path, err := km.Save(w, "secret")
	require.NoError(t, err)
	assert.FileExists(t, path)

	loaded, err := km.Load(w.Address(), "secret")
	require.NoError(t, err)
	assert.Equal(t, w.Address(), loaded.Address())

	signed, err := loaded.SignMessage("hello")
	require.NoError(t, err)
	assert.True(t, SignatureMatches("hello", signed, w.Address()))

	_, err = km.Load(w.Address(), "wrong")
	assert.Error(t, err)

	_, err = LoadKeystoreFile(path+".missing", "secret")
	assert.Error(t, err)
}
