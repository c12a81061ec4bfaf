package scanner

import (
	"context"
	"errors"
)

var (
	ErrNoDevices       = errors.New("no camera devices")
	ErrUnavailable     = errors.New("scanning unavailable")
	ErrInvalidFacing   = errors.New("invalid facing")
	ErrAlreadyScanning = errors.New("already scanning")
	ErrNotScanning     = errors.New("not scanning")
)

type Facing string

const (
	FacingFront Facing = "user"
	FacingBack  Facing = "environment"
)

func (f Facing) Validate() (err error) {
	switch f {
	case FacingFront, FacingBack:
		return nil
	default:
		return ErrInvalidFacing
	}
}

func (f Facing) Opposite() (o Facing) {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

type Device struct {
	Id     string `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	Facing Facing `json:"facing" yaml:"facing"`
}

// Scanner is the optical decode capability. Decoding happens outside this module,
// implementations only hand over decoded strings.
type Scanner interface {
	// Enumerates the available cameras
	Devices(ctx context.Context) (devices []Device, err error)

	// Starts decoding with the camera facing the requested side.
	// The channel is closed after Stop
	Start(ctx context.Context, facing Facing) (decodes <-chan string, err error)

	// Stops decoding
	Stop() (err error)
}
