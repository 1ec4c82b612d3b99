package contract

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
)

type interfaceFixture struct {
	svc        *InterfaceService
	manifests  *store.MemoryManifestStore
	projectID  uuid.UUID
	imported   uuid.UUID
	deployed   uuid.UUID
	noManifest uuid.UUID
}

func newInterfaceFixture(t *testing.T, lggr logger.Logger) *interfaceFixture {
	t.Helper()
	f := &interfaceFixture{
		manifests:  store.NewMemoryManifestStore(),
		projectID:  uuid.New(),
		imported:   uuid.New(),
		deployed:   uuid.New(),
		noManifest: uuid.New(),
	}

	deployments := store.NewMemoryDeploymentStore()
	require.NoError(t, deployments.Add(types.ContractDeployment{ID: f.imported, ProjectID: f.projectID, Alias: "token", ContractID: "imported.token", Imported: true}))
	require.NoError(t, deployments.Add(types.ContractDeployment{ID: f.deployed, ProjectID: f.projectID, Alias: "own", ContractID: "imported.token"}))
	require.NoError(t, deployments.Add(types.ContractDeployment{ID: f.noManifest, ProjectID: f.projectID, Alias: "bare", ContractID: "imported.bare", Imported: true}))

	f.manifests.Put(f.projectID, types.ContractManifest{
		ContractID:         "imported.token",
		Implements:         []types.InterfaceID{"custom.transfer-events"},
		FunctionDecorators: decorators("transfer(address,uint256)", "balanceOf(address)", "owner()"),
		EventDecorators:    decorators("Transfer(address,address,uint256)"),
	})

	catalog := store.NewMemoryInterfaceCatalogStore(erc20Entry, ownableEntry, eventsOnlyEntry, emptyEntry)
	f.svc = NewInterfaceService(deployments, f.manifests, catalog, lggr)
	return f
}

func TestInterfaceService_SuggestedInterfaces(t *testing.T) {
	f := newInterfaceFixture(t, logger.Test(t))

	tests := []struct {
		name    string
		id      uuid.UUID
		want    []types.InterfaceID
		wantErr error
	}{
		{name: "imported contract", id: f.imported, want: []types.InterfaceID{"openzeppelin.erc20", "openzeppelin.ownable"}},
		{name: "unknown deployment", id: uuid.New(), wantErr: types.ErrNotFound},
		{name: "not imported", id: f.deployed, wantErr: types.ErrNotFound},
		{name: "no manifest", id: f.noManifest, wantErr: types.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.SuggestedInterfaces(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterfaceService_WithSuggestedInterfaces(t *testing.T) {
	f := newInterfaceFixture(t, nil)
	manifest := types.ContractManifest{
		ContractID:         "preview",
		Implements:         []types.InterfaceID{"custom.existing"},
		FunctionDecorators: decorators("owner()"),
	}

	got, err := f.svc.WithSuggestedInterfaces(context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, []types.InterfaceID{"custom.existing", "openzeppelin.ownable"}, got.Implements)
	assert.Equal(t, []types.InterfaceID{"custom.existing"}, manifest.Implements)
}

func TestInterfaceService_UpdateInterfaces(t *testing.T) {
	ctx := context.Background()
	lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)
	f := newInterfaceFixture(t, lggr)

	got, err := f.svc.AddInterfaces(ctx, f.imported, f.projectID, []types.InterfaceID{"openzeppelin.erc20", "custom.transfer-events"})
	require.NoError(t, err)
	assert.Equal(t, []types.InterfaceID{"custom.transfer-events", "openzeppelin.erc20"}, got)

	got, err = f.svc.RemoveInterfaces(ctx, f.imported, f.projectID, []types.InterfaceID{"custom.transfer-events", "custom.never-added"})
	require.NoError(t, err)
	assert.Equal(t, []types.InterfaceID{"openzeppelin.erc20"}, got)

	got, err = f.svc.SetInterfaces(ctx, f.imported, f.projectID, []types.InterfaceID{"openzeppelin.ownable", "openzeppelin.ownable"})
	require.NoError(t, err)
	assert.Equal(t, []types.InterfaceID{"openzeppelin.ownable"}, got)

	stored, err := f.manifests.ManifestFor(ctx, "imported.token", f.projectID)
	require.NoError(t, err)
	assert.Equal(t, []types.InterfaceID{"openzeppelin.ownable"}, stored.Implements)

	// 已声明的接口不再推荐
	suggested, err := f.svc.SuggestedInterfaces(ctx, f.imported)
	require.NoError(t, err)
	assert.Equal(t, []types.InterfaceID{"openzeppelin.erc20", "custom.transfer-events"}, suggested)

	assert.Equal(t, 1, logs.FilterMessage("Adding interfaces to imported contract").Len())
}

func TestInterfaceService_UpdateInterfaces_Errors(t *testing.T) {
	ctx := context.Background()
	f := newInterfaceFixture(t, nil)

	tests := []struct {
		name      string
		id        uuid.UUID
		projectID uuid.UUID
		ids       []types.InterfaceID
		wantErr   error
	}{
		{name: "other project", id: f.imported, projectID: uuid.New(), ids: []types.InterfaceID{"openzeppelin.erc20"}, wantErr: types.ErrNotFound},
		{name: "not imported", id: f.deployed, projectID: f.projectID, ids: []types.InterfaceID{"openzeppelin.erc20"}, wantErr: types.ErrNotFound},
		{name: "no manifest", id: f.noManifest, projectID: f.projectID, ids: []types.InterfaceID{"openzeppelin.erc20"}, wantErr: types.ErrNotFound},
		{name: "unknown interface", id: f.imported, projectID: f.projectID, ids: []types.InterfaceID{"custom.unknown"}, wantErr: types.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddInterfaces(ctx, tt.id, tt.projectID, tt.ids)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	stored, err := f.manifests.ManifestFor(ctx, "imported.token", f.projectID)
	require.NoError(t, err)
	assert.Equal(t, []types.InterfaceID{"custom.transfer-events"}, stored.Implements)
}
