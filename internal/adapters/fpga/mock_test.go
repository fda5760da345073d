package fpga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldland/fpga-offload/internal/domain"
	"github.com/worldland/fpga-offload/internal/protocol"
)

func TestMultiplierDevice_ReturnsProductOnDotProductRegister(t *testing.T) {
	dev := NewMultiplierDevice()

	require.NoError(t, dev.Poke(protocol.DotProduct.Offset, protocol.DotProduct.Pack(0xFFFF, 0xFFFF)))
	v, err := dev.Peek(protocol.DotProduct.Offset)

	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFE0001), v)
}

func TestMultiplierDevice_StoresOtherRegistersVerbatim(t *testing.T) {
	dev := NewMultiplierDevice()

	require.NoError(t, dev.Poke(protocol.StatusRegister, 0xBEEF0001))
	v, _ := dev.Peek(protocol.StatusRegister)

	assert.Equal(t, uint32(0xBEEF0001), v)
}

func TestMockPlatform_DescribeReplaysImagesAndRepeatsLast(t *testing.T) {
	bad := LoadedImage(0, domain.Identity{VendorID: 0x1D0F, DeviceID: 0xBEEF})
	good := LoadedImage(0, domain.DefaultIdentity)
	p := NewMockPlatform(bad, good)

	first, _ := p.DescribeLocalImage(0)
	second, _ := p.DescribeLocalImage(0)
	third, _ := p.DescribeLocalImage(0)

	assert.Equal(t, uint16(0xBEEF), first.AppIdentity().DeviceID)
	assert.Equal(t, domain.DefaultIdentity, second.AppIdentity())
	assert.Equal(t, domain.DefaultIdentity, third.AppIdentity())
	assert.Equal(t, 3, p.DescribeCalls)
}

func TestMockPlatform_DescribeWithoutImagesReportsNotLoaded(t *testing.T) {
	p := NewMockPlatform()

	info, err := p.DescribeLocalImage(3)

	require.NoError(t, err)
	assert.Equal(t, domain.ImageStatusNotLoaded, info.Status)
	assert.Equal(t, domain.AcceleratorSlot(3), info.Slot)
}

func TestMockPlatform_FailAccessFailsOnlyTheKthAccess(t *testing.T) {
	p := NewMockPlatform()
	p.FailAccess = 2
	h, err := p.Attach(0, domain.AppPF, domain.Bar0, 0)
	require.NoError(t, err)

	assert.NoError(t, p.Poke(h, protocol.DotProductRegister, 1))
	_, err = p.Peek(h, protocol.DotProductRegister)
	assert.ErrorIs(t, err, ErrInjected)
	assert.NoError(t, p.Poke(h, protocol.DotProductRegister, 1))
	assert.Equal(t, 3, p.Accesses())
}

func TestMockPlatform_DetachReleasesEvenWhenReportingError(t *testing.T) {
	p := NewMockPlatform()
	p.DetachErr = ErrInjected
	h, _ := p.Attach(0, domain.AppPF, domain.Bar0, 0)

	err := p.Detach(h)

	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, p.LiveHandles())
	_, err = p.Peek(h, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidHandle)
}
