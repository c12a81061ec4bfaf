package push

import (
	"context"
	"errors"
	"sync"

	"anarchy.ttfm/scanpay/scanner"
)

var (
	ErrNotStarted = errors.New("scanner not started")
	ErrBufferFull = errors.New("decode buffer full")
)

const DefaultBuffer = 16

// Scanner receives decoded strings from an external decoder through Push
type Scanner struct {
	mu         sync.Mutex
	devices    []scanner.Device
	devicesErr error
	buffer     int
	facing     scanner.Facing
	decodes    chan string
}

var _ scanner.Scanner = (*Scanner)(nil)

type Config struct {
	// Cameras reported by the decoder host
	Devices []scanner.Device
	// When set Devices fails with it
	DevicesErr error
	// Capacity of the decodes channel
	Buffer int
}

func New(config Config) (s *Scanner) {
	if config.Buffer <= 0 {
		config.Buffer = DefaultBuffer
	}
	return &Scanner{
		devices:    config.Devices,
		devicesErr: config.DevicesErr,
		buffer:     config.Buffer,
	}
}

func (s *Scanner) Devices(ctx context.Context) (devices []scanner.Device, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.devicesErr != nil {
		return nil, s.devicesErr
	}
	devices = make([]scanner.Device, len(s.devices))
	copy(devices, s.devices)
	return devices, nil
}

func (s *Scanner) Start(ctx context.Context, facing scanner.Facing) (decodes <-chan string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.decodes != nil {
		return nil, scanner.ErrAlreadyScanning
	}
	s.facing = facing
	s.decodes = make(chan string, s.buffer)
	return s.decodes, nil
}

func (s *Scanner) Stop() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.decodes == nil {
		return nil
	}
	close(s.decodes)
	s.decodes = nil
	return nil
}

// Push hands a decoded string to the active scan. It never blocks
func (s *Scanner) Push(raw string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.decodes == nil {
		return ErrNotStarted
	}
	select {
	case s.decodes <- raw:
		return nil
	default:
		return ErrBufferFull
	}
}

// Facing returns the side requested by the last Start
func (s *Scanner) Facing() (facing scanner.Facing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.facing
}
