package engine

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldland/fpga-offload/internal/accel"
	"github.com/worldland/fpga-offload/internal/adapters/fpga"
	"github.com/worldland/fpga-offload/internal/domain"
	"github.com/worldland/fpga-offload/internal/protocol"
)

// scriptedDevice replays fixed peek values and records every access
type scriptedDevice struct {
	peeks   []uint32
	pokes   []uint32
	offsets []uint64
	next    int
}

func (d *scriptedDevice) Poke(offset uint64, value uint32) error {
	d.offsets = append(d.offsets, offset)
	d.pokes = append(d.pokes, value)
	return nil
}

func (d *scriptedDevice) Peek(offset uint64) (uint32, error) {
	d.offsets = append(d.offsets, offset)
	v := d.peeks[d.next]
	d.next++
	return v, nil
}

func TestCompute_ExampleVectors(t *testing.T) {
	dev := &scriptedDevice{peeks: []uint32{6, 0}}
	e := New(protocol.DotProduct, 0)
	vec1 := []uint16{2, 5}
	vec2 := []uint16{3, 0}

	got, err := e.Compute(dev, vec1, vec2)
	require.NoError(t, err)

	host := HostDotProduct(vec1, vec2)
	assert.Equal(t, 6.0, host)
	assert.Equal(t, 6.0, got)
	assert.True(t, e.Compare(got, host).Match)

	assert.Equal(t, []uint32{0x00020003, 0x00050000}, dev.pokes)
	for _, off := range dev.offsets {
		assert.Equal(t, protocol.DotProductRegister, off)
	}
}

func TestCompute_AlternatesPokeThenPeek(t *testing.T) {
	var order []string
	dev := &funcDevice{
		poke: func(uint64, uint32) error { order = append(order, "poke"); return nil },
		peek: func(uint64) (uint32, error) { order = append(order, "peek"); return 1, nil },
	}

	_, err := New(protocol.DotProduct, 0).Compute(dev, []uint16{1, 1, 1}, []uint16{1, 1, 1})

	require.NoError(t, err)
	assert.Equal(t, []string{"poke", "peek", "poke", "peek", "poke", "peek"}, order)
}

func TestCompute_EmptyVectorsReturnZeroWithoutAccess(t *testing.T) {
	dev := &scriptedDevice{}

	got, err := New(protocol.DotProduct, 0).Compute(dev, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
	assert.Empty(t, dev.offsets)
}

func TestCompute_RejectsLengthMismatch(t *testing.T) {
	dev := &scriptedDevice{}

	_, err := New(protocol.DotProduct, 0).Compute(dev, []uint16{1, 2}, []uint16{1})

	assert.ErrorIs(t, err, domain.ErrLengthMismatch)
	assert.Empty(t, dev.offsets)
}

func TestCompute_MatchesHostReferenceOnSimulatedDevice(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	e := New(protocol.DotProduct, 0)

	for _, n := range []int{0, 1, 2, 17, 1000, 4096} {
		vec1 := make([]uint16, n)
		vec2 := make([]uint16, n)
		for i := range vec1 {
			vec1[i] = uint16(rng.Uint32())
			vec2[i] = uint16(rng.Uint32())
		}

		got, err := e.Compute(fpga.NewMultiplierDevice(), vec1, vec2)
		require.NoError(t, err)

		want := HostDotProduct(vec1, vec2)
		assert.Equal(t, want, got, "n=%d", n)
		assert.True(t, e.Compare(got, want).Match, "n=%d", n)
	}
}

func TestCompute_MaxOperandsStayExact(t *testing.T) {
	n := 1 << 12
	vec := make([]uint16, n)
	for i := range vec {
		vec[i] = 0xFFFF
	}

	got, err := New(protocol.DotProduct, 0).Compute(fpga.NewMultiplierDevice(), vec, vec)

	require.NoError(t, err)
	assert.Equal(t, float64(uint64(n)*0xFFFE0001), got)
}

func TestCompute_KthAccessFailureReleasesHandleOnceAndStops(t *testing.T) {
	const n = 4
	vec1 := []uint16{1, 2, 3, 4}
	vec2 := []uint16{5, 6, 7, 8}
	target := domain.BarTarget{Slot: 0, PF: domain.AppPF, Bar: domain.Bar0}

	for k := 1; k <= 2*n; k++ {
		p := fpga.NewMockPlatform()
		p.FailAccess = k
		logger, _ := test.NewNullLogger()

		err := accel.WithBar(p, target, logger, func(dev domain.RegisterDevice) error {
			_, err := New(protocol.DotProduct, 0).Compute(dev, vec1, vec2)
			return err
		})

		var accessErr *domain.AccessError
		require.ErrorAs(t, err, &accessErr, "k=%d", k)
		assert.ErrorIs(t, err, fpga.ErrInjected, "k=%d", k)
		assert.Equal(t, (k-1)/2, accessErr.Index, "k=%d", k)
		if k%2 == 1 {
			assert.Equal(t, "poke", accessErr.Op, "k=%d", k)
		} else {
			assert.Equal(t, "peek", accessErr.Op, "k=%d", k)
		}
		assert.Equal(t, k, p.Accesses(), "no access beyond k=%d", k)
		assert.Len(t, p.DetachCalls, 1, "k=%d", k)
		assert.Equal(t, 0, p.LiveHandles(), "k=%d", k)
	}
}

func TestCompute_PlainDeviceErrorIsWrapped(t *testing.T) {
	boom := errors.New("bus error")
	dev := &funcDevice{
		poke: func(uint64, uint32) error { return nil },
		peek: func(uint64) (uint32, error) { return 0, boom },
	}

	_, err := New(protocol.DotProduct, 0).Compute(dev, []uint16{1}, []uint16{1})

	var accessErr *domain.AccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, "peek", accessErr.Op)
	assert.Equal(t, 0, accessErr.Index)
	assert.Equal(t, protocol.DotProductRegister, accessErr.Offset)
	assert.ErrorIs(t, err, boom)
}

func TestCompare_ExactByDefault(t *testing.T) {
	e := New(protocol.DotProduct, 0)

	assert.True(t, e.Compare(6, 6).Match)
	assert.False(t, e.Compare(6, 6.5).Match)
	assert.False(t, e.Compare(1<<40+1, 1<<40).Match)
}

func TestCompare_WithTolerance(t *testing.T) {
	e := New(protocol.DotProduct, 0.5)

	assert.True(t, e.Compare(6, 6.5).Match)
	assert.False(t, e.Compare(6, 6.75).Match)
}

type funcDevice struct {
	poke func(uint64, uint32) error
	peek func(uint64) (uint32, error)
}

func (d *funcDevice) Poke(offset uint64, value uint32) error { return d.poke(offset, value) }
func (d *funcDevice) Peek(offset uint64) (uint32, error)    { return d.peek(offset) }
