package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/wallet"
)

const sampleCatalog = `
interfaces:
  - id: openzeppelin.ownable
    name: Ownable
    functions:
      - signature: owner()
`

func TestNew_WiresServices(t *testing.T) {
	ctx := context.Background()
	catalogPath := writeConfig(t, sampleCatalog)
	cfg, err := LoadConfig(writeConfig(t, "chains:\n  \"1337\": http://localhost:8545\ncatalog:\n  path: "+catalogPath+"\n"))
	require.NoError(t, err)

	svc, err := New(ctx, cfg, WithLogger(logger.Test(t)))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })

	assert.IsType(t, &store.MemoryRequestStore{}, svc.Requests)
	entry, err := svc.Catalog.GetByID(ctx, "openzeppelin.ownable")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "owner()", entry.FunctionDecorators[0].Signature)

	// 授权请求走完整生命周期
	w, err := wallet.NewWallet()
	require.NoError(t, err)
	project := &types.Project{ChainID: 1337, BaseRedirectURL: "https://app.example.com"}

	req, err := svc.Authorization.CreateAuthorizationRequest(ctx, nil, project)
	require.NoError(t, err)
	signed, err := w.SignMessage(req.MessageToSign())
	require.NoError(t, err)
	require.NoError(t, svc.Authorization.AttachWalletAddressAndSignedMessage(ctx, req.ID, w.Address(), signed))

	got, err := svc.Authorization.GetAuthorizationRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, got.Status)
}

func TestNew_Options(t *testing.T) {
	requests := store.NewMemoryRequestStore()
	catalog := store.NewMemoryInterfaceCatalogStore()
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	svc, err := New(context.Background(), cfg,
		WithLogger(logger.Nop()),
		WithRequestStore(requests),
		WithInterfaceCatalog(catalog))
	require.NoError(t, err)
	defer svc.Close()

	assert.Same(t, requests, svc.Requests)
	assert.Same(t, catalog, svc.Catalog)
	assert.NotNil(t, svc.Token)
	assert.NotNil(t, svc.Calls)
	assert.NotNil(t, svc.FunctionCalls)
	assert.NotNil(t, svc.Deployment)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Catalog.Path = "/nonexistent/interfaces.yaml"
	_, err = New(context.Background(), cfg, WithLogger(logger.Nop()))
	assert.ErrorContains(t, err, "load interface catalog")
}
