package quoting

import (
	"context"

	"github.com/pkg/errors"

	"github.com/betbot/deltamm/internal/ports"
)

// Allocate clamps desired volume per side to what the position limit leaves:
// bid = min(desired, limit-position), ask = min(desired, limit+position).
// A result <= 0 means the side must not be quoted.
func Allocate(position, desired, limit int) (bidVolume, askVolume int) {
	return min(desired, limit-position), min(desired, limit+position)
}

// VolumeAllocator reads the live position before clamping.
type VolumeAllocator struct {
	positions ports.PositionGetter
}

func NewVolumeAllocator(positions ports.PositionGetter) *VolumeAllocator {
	return &VolumeAllocator{positions: positions}
}

// Allocate returns the clamped volumes and the position they were computed from.
func (a *VolumeAllocator) Allocate(ctx context.Context, instrumentID string, desired, limit int) (bidVolume, askVolume, position int, err error) {
	pos, err := a.positions.GetPositions(ctx)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "get positions")
	}
	position = pos.Get(instrumentID)
	bidVolume, askVolume = Allocate(position, desired, limit)
	return bidVolume, askVolume, position, nil
}
