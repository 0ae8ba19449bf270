package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/config"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// RelayTransport powers the projector through a relay wired on a GPIO pin.
type RelayTransport struct {
	lock       sync.Mutex
	pinName    string
	activeLow  bool
	simulation bool

	pin gpio.PinIO
}

func NewRelayTransport(param config.GpioParam, simulation bool) (*RelayTransport, error) {
	relay := &RelayTransport{
		pinName:    param.Pin,
		activeLow:  param.ActiveLow,
		simulation: simulation,
	}
	if simulation {
		return relay, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("unable to initialize GPIO host: %w", err)
	}
	relay.pin = gpioreg.ByName(param.Pin)
	if relay.pin == nil {
		return nil, fmt.Errorf("failed to find %s relay pin", param.Pin)
	}
	return relay, nil
}

func (t *RelayTransport) PowerOn(ctx context.Context) error {
	return t.set(apimodel.PowerStateOn)
}

func (t *RelayTransport) PowerOff(ctx context.Context) error {
	return t.set(apimodel.PowerStateOff)
}

func (t *RelayTransport) level(state apimodel.PowerState) gpio.Level {
	on := state == apimodel.PowerStateOn
	return gpio.Level(on != t.activeLow)
}

func (t *RelayTransport) set(state apimodel.PowerState) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	level := t.level(state)
	if t.simulation {
		logrus.Infof("Simulation, skip relay %s set to %s (%s)", t.pinName, level, state)
	} else {
		if err := t.pin.Out(level); err != nil {
			return fmt.Errorf("unable to drive relay %s: %w", t.pinName, err)
		}
		logrus.Infof("Relay %s set to %s (%s)", t.pinName, level, state)
	}
	return nil
}
