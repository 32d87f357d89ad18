package app

import (
	"testing"

	"acdmx.com/internal/platform"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestPlatformConfig(t *testing.T) {
	const (
		self  = "0x00000000000000000000000000000000000acd01"
		owner = "0x1111111111111111111111111111111111111111"
		gov   = "0x2222222222222222222222222222222222222222"
		ed    = "0x3333333333333333333333333333333333333333"
	)
	tests := []struct {
		name    string
		cfg     Config
		editor  string
		wantErr bool
	}{
		{"editor 默认取治理地址", Config{Platform: PlatformConfig{Self: self, Owner: owner}, Governance: GovernanceConfig{Address: gov}}, gov, false},
		{"显式 editor 优先", Config{Platform: PlatformConfig{Self: self, Owner: owner, Editor: ed}, Governance: GovernanceConfig{Address: gov}}, ed, false},
		{"缺 owner", Config{Platform: PlatformConfig{Self: self}}, "", true},
		{"self 不是地址", Config{Platform: PlatformConfig{Self: "abc", Owner: owner}}, "", true},
		{"比例超过 1000", Config{Platform: PlatformConfig{Self: self, Owner: owner, Fractions: platform.Fractions{SaleRef1: 1000}}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, _, err := tt.cfg.platformConfig()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, common.HexToAddress(tt.editor), pc.Editor)
			require.Equal(t, platform.DefaultFractions(), pc.Fractions)
		})
	}
}

func TestNewBroker(t *testing.T) {
	b, err := newBroker(BrokerConfig{})
	require.NoError(t, err)
	require.Nil(t, b)

	b, err = newBroker(BrokerConfig{Driver: "mem"})
	require.NoError(t, err)
	require.NotNil(t, b)

	_, err = newBroker(BrokerConfig{Driver: "kafka"})
	require.Error(t, err)
}
