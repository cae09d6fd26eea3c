package xenctrl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeGetDomainInfo(t *testing.T) {
	f := NewFake(4)
	info, err := f.GetDomainInfo(context.Background(), 0)
	require.NoError(t, err)
	require.EqualValues(t, 4, info.NrOnlineVCPUs)
}

func TestFakeGetDomainInfoUnknown(t *testing.T) {
	f := NewFake(2)
	_, err := f.GetDomainInfo(context.Background(), 99)
	require.ErrorIs(t, err, ErrNoSuchDomain)
}

func TestFakeGetVCpuInfo(t *testing.T) {
	f := NewFake(2)
	info, err := f.GetVCpuInfo(context.Background(), 0, 1)
	require.NoError(t, err)
	require.True(t, info.Online)
	require.EqualValues(t, 1, info.CPU)
}

func TestFakePhysInfo(t *testing.T) {
	f := NewFake(8)
	phys, err := f.PhysInfo(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 8, phys.NrCPUs)
}
