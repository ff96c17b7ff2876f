package uwf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSnapshot(t *testing.T) {
	c, _ := newTestClient(uwfHost())
	stores := NewStores()
	require.Equal(t, Succeeded, c.Collect(context.Background(), "", stores).Outcome)
	vols, err := c.EnumerateVolumes(context.Background(), "")
	require.NoError(t, err)

	snap, err := BuildSnapshot(stores, vols)
	require.NoError(t, err)

	assert.Equal(t, &FilterStatus{ID: "UWF_Filter", CurrentEnabled: true, NextEnabled: true}, snap.Filter)
	assert.Equal(t, &OverlayStatus{AvailableSpace: 3072, CriticalThreshold: 1024, Consumption: 128, WarningThreshold: 512}, snap.Overlay)
	assert.Equal(t, uint64(4096), snap.OverlayNext.AvailableSpace)
	assert.Equal(t, &OverlayConfig{Type: OverlayRAM, MaximumSize: 1024, CurrentSession: true}, snap.OverlayConfig)
	assert.Equal(t, &OverlayConfig{Type: OverlayDisk, MaximumSize: 4096}, snap.OverlayConfigNext)
	assert.Equal(t, &ServicingStatus{CurrentSession: true}, snap.Servicing)
	assert.Equal(t, &ServicingStatus{Enabled: true}, snap.ServicingNext)
	assert.Equal(t, []string{"C:"}, snap.Protected)
	assert.Equal(t, []string{"C:"}, snap.ProtectedNext)
	assert.Len(t, snap.Volumes, 3)
}

func TestBuildSnapshotEmpty(t *testing.T) {
	snap, err := BuildSnapshot(NewStores(), nil)
	require.NoError(t, err)

	assert.Nil(t, snap.Filter)
	assert.Nil(t, snap.Overlay)
	assert.Nil(t, snap.OverlayConfigNext)
	assert.NotNil(t, snap.Volumes)
	assert.Empty(t, snap.Protected)
}

func TestBuildSnapshotSessionGate(t *testing.T) {
	stores := NewStores()
	// Level 1 unexpectedly reports the current session.
	stores.OverlayConfigNext.Set(PropCurrentSession, "true")
	stores.OverlayConfigNext.Set(PropMaximumSize, "2048")
	stores.OverlayConfigNext.Set(KeyErrorOccurred, "false")

	snap, err := BuildSnapshot(stores, nil)
	require.NoError(t, err)
	assert.Nil(t, snap.OverlayConfigNext)
}

func TestBuildSnapshotParseErrors(t *testing.T) {
	stores := NewStores()
	stores.Filter.Set(PropCurrentEnabled, "yes please")
	stores.Filter.Set(PropNextEnabled, "true")
	stores.Filter.Set(KeyErrorOccurred, "false")
	stores.Overlay.Set(PropOverlayConsumption, "-1")
	stores.Overlay.Set(KeyErrorOccurred, "false")

	snap, err := BuildSnapshot(stores, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filter.CurrentEnabled")
	assert.Contains(t, err.Error(), "overlay.OverlayConsumption")

	require.NotNil(t, snap.Filter)
	assert.True(t, snap.Filter.NextEnabled)
}

func TestOverlayTypeText(t *testing.T) {
	b, err := OverlayDisk.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Disk", string(b))
	assert.Equal(t, "OverlayType(7)", OverlayType(7).String())
}
