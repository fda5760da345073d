package accel

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldland/fpga-offload/internal/adapters/fpga"
	"github.com/worldland/fpga-offload/internal/domain"
	"github.com/worldland/fpga-offload/internal/protocol"
)

var appBar0 = domain.BarTarget{Slot: 0, PF: domain.AppPF, Bar: domain.Bar0}

func TestAttach_WrapsPlatformFailure(t *testing.T) {
	p := fpga.NewMockPlatform()
	p.AttachErr = fpga.ErrInjected

	h, err := Attach(p, appBar0)

	assert.Nil(t, h)
	var attachErr *domain.AttachError
	require.ErrorAs(t, err, &attachErr)
	assert.Equal(t, appBar0, attachErr.Target)
	assert.ErrorIs(t, err, fpga.ErrInjected)
}

func TestDetach_IsIssuedOnlyOnce(t *testing.T) {
	p := fpga.NewMockPlatform()
	h, err := Attach(p, appBar0)
	require.NoError(t, err)

	require.NoError(t, h.Detach())
	require.NoError(t, h.Detach())

	assert.Len(t, p.DetachCalls, 1)
	assert.False(t, h.Attached())
}

func TestDetach_ReportsDetachError(t *testing.T) {
	p := fpga.NewMockPlatform()
	p.DetachErr = fpga.ErrInjected
	h, _ := Attach(p, appBar0)

	err := h.Detach()

	var detachErr *domain.DetachError
	require.ErrorAs(t, err, &detachErr)
	assert.Equal(t, domain.AcceleratorSlot(0), detachErr.Slot)
	assert.False(t, h.Attached())
}

func TestHandle_AccessAfterDetachFails(t *testing.T) {
	p := fpga.NewMockPlatform()
	h, _ := Attach(p, appBar0)
	_ = h.Detach()

	_, err := h.Peek(protocol.DotProductRegister)
	assert.ErrorIs(t, err, domain.ErrHandleDetached)

	err = h.Poke(protocol.DotProductRegister, 1)
	assert.ErrorIs(t, err, domain.ErrHandleDetached)
	assert.Equal(t, 0, p.Accesses(), "no platform access after detach")
}

func TestHandle_WrapsAccessFailure(t *testing.T) {
	p := fpga.NewMockPlatform()
	p.FailAccess = 1
	h, _ := Attach(p, appBar0)

	err := h.Poke(protocol.DotProductRegister, 1)

	var accessErr *domain.AccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, "poke", accessErr.Op)
	assert.Equal(t, protocol.DotProductRegister, accessErr.Offset)
}

func TestWithBar_DetachesAfterSuccess(t *testing.T) {
	p := fpga.NewMockPlatform()
	logger, _ := test.NewNullLogger()

	err := WithBar(p, appBar0, logger, func(dev domain.RegisterDevice) error {
		return dev.Poke(protocol.DotProductRegister, protocol.DotProduct.Pack(3, 4))
	})

	require.NoError(t, err)
	assert.Len(t, p.AttachCalls, 1)
	assert.Len(t, p.DetachCalls, 1)
	assert.Equal(t, 0, p.LiveHandles())
}

func TestWithBar_DetachesWhenFnFails(t *testing.T) {
	p := fpga.NewMockPlatform()
	logger, _ := test.NewNullLogger()
	boom := errors.New("compute failed")

	err := WithBar(p, appBar0, logger, func(dev domain.RegisterDevice) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, p.DetachCalls, 1)
}

func TestWithBar_DetachFailureDoesNotMaskOriginalError(t *testing.T) {
	p := fpga.NewMockPlatform()
	p.DetachErr = errors.New("detach failed")
	logger, hook := test.NewNullLogger()
	boom := errors.New("compute failed")

	err := WithBar(p, appBar0, logger, func(dev domain.RegisterDevice) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, p.DetachErr)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestWithBar_DetachFailureAfterSuccessIsLoggedOnly(t *testing.T) {
	p := fpga.NewMockPlatform()
	p.DetachErr = errors.New("detach failed")
	logger, hook := test.NewNullLogger()

	err := WithBar(p, appBar0, logger, func(dev domain.RegisterDevice) error { return nil })

	assert.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestWithBar_DetachesOnPanic(t *testing.T) {
	p := fpga.NewMockPlatform()
	logger, _ := test.NewNullLogger()

	assert.Panics(t, func() {
		_ = WithBar(p, appBar0, logger, func(dev domain.RegisterDevice) error {
			panic("register map corrupted")
		})
	})
	assert.Len(t, p.DetachCalls, 1)
}

func TestWithBar_DoesNotRunFnWhenAttachFails(t *testing.T) {
	p := fpga.NewMockPlatform()
	p.AttachErr = fpga.ErrInjected
	logger, _ := test.NewNullLogger()
	called := false

	err := WithBar(p, appBar0, logger, func(dev domain.RegisterDevice) error {
		called = true
		return nil
	})

	var attachErr *domain.AttachError
	assert.ErrorAs(t, err, &attachErr)
	assert.False(t, called)
	assert.Empty(t, p.DetachCalls)
}
