package scanner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anarchy.ttfm/scanpay/scanner"
	"anarchy.ttfm/scanpay/scanner/push"
	"github.com/stretchr/testify/assert"
)

var devices = []scanner.Device{
	{Id: "cam-0", Label: "Back camera", Facing: scanner.FacingBack},
	{Id: "cam-1", Label: "Front camera", Facing: scanner.FacingFront},
}

type collector struct {
	mu   sync.Mutex
	raws []string
	got  chan struct{}
}

func newCollector() (c *collector) {
	return &collector{got: make(chan struct{}, 16)}
}

func (c *collector) onDecode(raw string) {
	c.mu.Lock()
	c.raws = append(c.raws, raw)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T) {
	select {
	case <-c.got:
	case <-time.After(time.Second):
		t.Fatal("decode not delivered")
	}
}

func Test_Session(t *testing.T) {
	t.Run("Deliver", func(t *testing.T) {
		assertions := assert.New(t)

		source := push.New(push.Config{Devices: devices})
		session := scanner.NewSession(source)

		status, err := session.Refresh(context.TODO())
		assertions.Nil(err, "failed to list devices")
		assertions.True(status.Available)
		assertions.Len(status.Devices, 2)

		c := newCollector()
		err = session.Start(context.TODO(), "", c.onDecode)
		assertions.Nil(err, "failed to start")
		assertions.Equal(scanner.FacingBack, source.Facing())
		assertions.True(session.Status().Active)

		assertions.Nil(source.Push("first"))
		c.wait(t)

		err = session.Stop()
		assertions.Nil(err, "failed to stop")
		assertions.False(session.Status().Active)
		assertions.ErrorIs(source.Push("late"), push.ErrNotStarted)
		assertions.Equal([]string{"first"}, c.raws)
	})

	t.Run("Switch facing", func(t *testing.T) {
		assertions := assert.New(t)

		source := push.New(push.Config{Devices: devices})
		session := scanner.NewSession(source)
		_, err := session.Refresh(context.TODO())
		assertions.Nil(err)

		_, err = session.SwitchFacing(context.TODO())
		assertions.ErrorIs(err, scanner.ErrNotScanning)

		c := newCollector()
		assertions.Nil(session.Start(context.TODO(), scanner.FacingBack, c.onDecode))

		facing, err := session.SwitchFacing(context.TODO())
		assertions.Nil(err, "failed to switch")
		assertions.Equal(scanner.FacingFront, facing)
		assertions.Equal(scanner.FacingFront, source.Facing())

		assertions.Nil(source.Push("after switch"))
		c.wait(t)
		assertions.Nil(session.Stop())
	})

	t.Run("Enumeration failure is advisory", func(t *testing.T) {
		assertions := assert.New(t)

		source := push.New(push.Config{DevicesErr: errors.New("permission denied")})
		session := scanner.NewSession(source)

		status, err := session.Refresh(context.TODO())
		assertions.NotNil(err)
		assertions.False(status.Available)
		assertions.Contains(status.Advisory, "permission denied")

		err = session.Start(context.TODO(), scanner.FacingBack, func(string) {})
		assertions.ErrorIs(err, scanner.ErrUnavailable)
	})

	t.Run("No devices", func(t *testing.T) {
		assertions := assert.New(t)

		session := scanner.NewSession(push.New(push.Config{}))
		status, err := session.Refresh(context.TODO())
		assertions.ErrorIs(err, scanner.ErrNoDevices)
		assertions.False(status.Available)
	})

	t.Run("Invalid facing", func(t *testing.T) {
		assertions := assert.New(t)

		session := scanner.NewSession(push.New(push.Config{Devices: devices}))
		_, _ = session.Refresh(context.TODO())
		assertions.ErrorIs(session.Start(context.TODO(), "sideways", func(string) {}), scanner.ErrInvalidFacing)
	})
}
