package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"

	"anarchy.ttfm/scanpay/utils"
)

type Status struct {
	// False when device enumeration failed
	Available bool `json:"available"`
	// Non fatal explanation of why scanning is unavailable
	Advisory string `json:"advisory,omitzero"`
	// Camera facing in use, or last used
	Facing Facing `json:"facing"`
	// True while decodes are being delivered
	Active  bool     `json:"active"`
	Devices []Device `json:"devices"`
}

// Session owns device and camera state. It knows nothing about payments:
// decoded strings are handed to the callback given to Start.
type Session struct {
	mu         sync.Mutex
	scanner    Scanner
	devices    []Device
	available  bool
	advisory   string
	facing     Facing
	active     bool
	onDecode   func(raw string)
	generation uint64
}

func NewSession(s Scanner) (session *Session) {
	return &Session{
		scanner: s,
		facing:  FacingBack,
	}
}

// Refresh enumerates devices. A failure only marks scanning as unavailable
func (s *Session) Refresh(ctx context.Context) (status Status, err error) {
	devices, err := s.scanner.Devices(ctx)
	if err == nil && len(devices) == 0 {
		err = ErrNoDevices
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.devices = nil
		s.available = false
		s.advisory = fmt.Sprintf("camera unavailable: %v", err)
		log.Println("WARN|LISTING|DEVICES", err)
		return s.status(), err
	}

	s.devices = devices
	s.available = true
	s.advisory = ""
	return s.status(), nil
}

func (s *Session) status() (status Status) {
	devices := make([]Device, len(s.devices))
	copy(devices, s.devices)
	return Status{
		Available: s.available,
		Advisory:  s.advisory,
		Facing:    s.facing,
		Active:    s.active,
		Devices:   devices,
	}
}

func (s *Session) Status() (status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status()
}

// Delivers decodes of one Start call. Decodes buffered before a Stop are dropped
func (s *Session) pump(generation uint64, decodes <-chan string) {
	defer utils.ConsumeChannel(decodes)

	for raw := range decodes {
		s.mu.Lock()
		current := s.generation == generation && s.active
		onDecode := s.onDecode
		s.mu.Unlock()

		if !current {
			return
		}
		onDecode(raw)
	}
}

func (s *Session) start(ctx context.Context, facing Facing, onDecode func(raw string)) (err error) {
	decodes, err := s.scanner.Start(ctx, facing)
	if err != nil {
		return fmt.Errorf("failed to start scanner: %w", err)
	}

	s.generation++
	s.active = true
	s.facing = facing
	s.onDecode = onDecode
	go s.pump(s.generation, decodes)
	return nil
}

// Start begins delivering decoded strings to onDecode, from a separate goroutine
func (s *Session) Start(ctx context.Context, facing Facing, onDecode func(raw string)) (err error) {
	if facing == "" {
		facing = s.Status().Facing
	}
	err = facing.Validate()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.available {
		return ErrUnavailable
	}
	if s.active {
		return ErrAlreadyScanning
	}
	return s.start(ctx, facing, onDecode)
}

func (s *Session) stop() (err error) {
	if !s.active {
		return nil
	}
	s.active = false
	s.generation++

	err = s.scanner.Stop()
	if err != nil {
		return fmt.Errorf("failed to stop scanner: %w", err)
	}
	return nil
}

// Stop ends the delivery of decodes. Safe to call from onDecode
func (s *Session) Stop() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stop()
}

// SwitchFacing restarts scanning with the opposite camera
func (s *Session) SwitchFacing(ctx context.Context) (facing Facing, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return s.facing, ErrNotScanning
	}

	onDecode := s.onDecode
	err = s.stop()
	if err != nil {
		return s.facing, err
	}

	err = s.start(ctx, s.facing.Opposite(), onDecode)
	if err != nil {
		return s.facing, err
	}
	return s.facing, nil
}
