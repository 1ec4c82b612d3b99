package types

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestVerifiableRequest_MessageToSign(t *testing.T) {
	id := uuid.MustParse("7d86b0ac-a9a6-40fc-ac6d-2a29ca687f73")
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	override := "custom message"

	tests := []struct {
		name string
		req  *VerifiableRequest
		want string
	}{
		{
			name: "default message",
			req:  &VerifiableRequest{ID: id, CreatedAt: createdAt},
			want: "Sign to authenticate with ID: 7d86b0ac-a9a6-40fc-ac6d-2a29ca687f73 at 2024-03-01T12:00:00Z",
		},
		{
			name: "override",
			req:  &VerifiableRequest{ID: id, CreatedAt: createdAt, MessageToSignOverride: &override},
			want: override,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.MessageToSign())
		})
	}
}

func TestSubstituteRequestID(t *testing.T) {
	id := uuid.MustParse("7d86b0ac-a9a6-40fc-ac6d-2a29ca687f73")

	got := SubstituteRequestID("https://example.com/${id}/action?again=${id}", id)

	assert.Equal(t, "https://example.com/"+id.String()+"/action?again="+id.String(), got)
	assert.Equal(t, "https://example.com/static", SubstituteRequestID("https://example.com/static", id))
}

func TestVerifiableRequest_Clone(t *testing.T) {
	addr := common.HexToAddress("0x865f603F42ca1231e5B5F90e15663b0FE19F0b21")
	sig := SignedMessage("0x00")
	req := &VerifiableRequest{
		ID:                  uuid.New(),
		ActualWalletAddress: &addr,
		SignedMessage:       &sig,
		Erc20:               &Erc20Details{TokenAddress: &addr},
	}

	c := req.Clone()
	*c.ActualWalletAddress = common.Address{}
	*c.SignedMessage = "0x01"
	*c.Erc20.TokenAddress = common.Address{}

	assert.Equal(t, addr, *req.ActualWalletAddress)
	assert.Equal(t, SignedMessage("0x00"), *req.SignedMessage)
	assert.Equal(t, addr, *req.Erc20.TokenAddress)
	assert.Nil(t, (*VerifiableRequest)(nil).Clone())
}

func TestBlockParameter_String(t *testing.T) {
	assert.Equal(t, "latest", BlockLatest.String())
	assert.Equal(t, "latest", BlockParameter{}.String())
	assert.Equal(t, "0x10", BlockNumber(16).String())
}
