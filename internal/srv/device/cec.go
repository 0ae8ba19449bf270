package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jypelle/pishow/internal/srv/config"
	"github.com/sirupsen/logrus"
)

// CecTransport powers the projector with an HDMI-CEC command line tool
// (cec-ctl by default).
type CecTransport struct {
	tool           string
	device         string
	logicalAddress string
	simulation     bool
}

func NewCecTransport(param config.CecParam, simulation bool) *CecTransport {
	return &CecTransport{
		tool:           param.Tool,
		device:         param.Device,
		logicalAddress: param.LogicalAddress,
		simulation:     simulation,
	}
}

func (t *CecTransport) PowerOn(ctx context.Context) error {
	return t.run(ctx, "--power", "on")
}

func (t *CecTransport) PowerOff(ctx context.Context) error {
	return t.run(ctx, "--standby")
}

// Command returns the full command line sent for args.
func (t *CecTransport) Command(args ...string) []string {
	command := []string{t.tool}
	if t.device != "" {
		command = append(command, "--device", t.device)
	}
	if t.logicalAddress != "" {
		command = append(command, "--to", t.logicalAddress)
	}
	return append(command, args...)
}

func (t *CecTransport) run(ctx context.Context, args ...string) error {
	if t.tool == "" {
		return errors.New("no CEC tool configured")
	}
	command := t.Command(args...)
	if t.simulation {
		logrus.Infof("Simulation, skip CEC command: %s", strings.Join(command, " "))
		return nil
	}

	output, err := exec.CommandContext(ctx, command[0], command[1:]...).CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("CEC tool '%s' not found: %w", t.tool, err)
		}
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("CEC command %s failed: %w: %s", strings.Join(command, " "), err, detail)
		}
		return fmt.Errorf("CEC command %s failed: %w", strings.Join(command, " "), err)
	}
	logrus.Infof("Sent CEC command: %s", strings.Join(command, " "))
	return nil
}
