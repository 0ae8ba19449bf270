package device

import (
	"context"
	"fmt"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/config"
)

// PowerTransport switches the projector on or off.
type PowerTransport interface {
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
}

func NewPowerTransport(param config.ProjectorParam, simulation bool) (PowerTransport, error) {
	switch param.Transport {
	case config.CecTransport:
		return NewCecTransport(param.Cec, simulation), nil
	case config.GpioTransport:
		return NewRelayTransport(param.Gpio, simulation)
	}
	return nil, fmt.Errorf("unknown projector transport %q", param.Transport)
}

// SetPower sends the command matching state.
func SetPower(ctx context.Context, transport PowerTransport, state apimodel.PowerState) error {
	switch state {
	case apimodel.PowerStateOn:
		return transport.PowerOn(ctx)
	case apimodel.PowerStateOff:
		return transport.PowerOff(ctx)
	}
	return apimodel.ErrInvalidPowerState
}
