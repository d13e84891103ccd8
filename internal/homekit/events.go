package homekit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/brutella/hap/characteristic"

	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/shadow"
)

// commandTimeout bounds a single hub call triggered from HomeKit.
const commandTimeout = 10 * time.Second

// CommandSink executes writes coming from HomeKit on the hub.
type CommandSink interface {
	CallAction(ctx context.Context, deviceID, action string, args ...any) error
	StartScene(ctx context.Context, sceneID string) error
	SetGlobalVariable(ctx context.Context, name, value string) error
}

// HAP enumeration values.
const (
	lockSecured = 1
	doorOpen    = 0
)

type commandKind int

const (
	commandAction commandKind = iota
	commandScene
	commandVariable
)

// command is one hub call derived from a characteristic write.
type command struct {
	kind     commandKind
	target   string
	action   string
	args     []any
	variable string
}

func (c command) String() string {
	switch c.kind {
	case commandScene:
		return "startScene(" + c.target + ")"
	case commandVariable:
		return "setGlobalVariable(" + c.target + "=" + c.variable + ")"
	default:
		return fmt.Sprintf("%s.%s%v", c.target, c.action, c.args)
	}
}

func (c command) run(ctx context.Context, sink CommandSink) error {
	switch c.kind {
	case commandScene:
		return sink.StartScene(ctx, c.target)
	case commandVariable:
		return sink.SetGlobalVariable(ctx, c.target, c.variable)
	default:
		return sink.CallAction(ctx, c.target, c.action, c.args...)
	}
}

// commandFor maps a write of value to characteristic kind on an accessory
// of deviceType to a hub call. False means the write has no hub effect.
func commandFor(deviceType, deviceID string, kind catalog.Characteristic, value any) (command, bool) {
	switch deviceType {
	case deviceTypeScene:
		if kind == catalog.On && truthy(value) {
			return command{kind: commandScene, target: deviceID}, true
		}
		return command{}, false
	case deviceTypeVariable:
		switch kind {
		case catalog.On:
			v := "false"
			if truthy(value) {
				v = "true"
			}
			return command{kind: commandVariable, target: deviceID, variable: v}, true
		case catalog.Brightness:
			return command{kind: commandVariable, target: deviceID, variable: strconv.Itoa(integer(value))}, true
		}
		return command{}, false
	}

	action := func(name string, args ...any) (command, bool) {
		return command{kind: commandAction, target: deviceID, action: name, args: args}, true
	}
	switch kind {
	case catalog.On:
		if truthy(value) {
			return action("turnOn")
		}
		return action("turnOff")
	case catalog.Brightness, catalog.TargetPosition:
		return action("setValue", integer(value))
	case catalog.TargetHorizontalTiltAngle:
		return action("setValue2", integer(value))
	case catalog.LockTargetState:
		if integer(value) == lockSecured {
			return action("secure")
		}
		return action("unsecure")
	case catalog.TargetDoorState:
		if integer(value) == doorOpen {
			return action("open")
		}
		return action("close")
	case catalog.TargetTemperature:
		return action("setTargetLevel", number(value))
	}
	return command{}, false
}

// BindEvents forwards HomeKit writes on c to the hub. Writes HAP controllers
// make are dispatched; values set locally by the bridge are not.
func (p *Platform) BindEvents(lc shadow.LiveCharacteristic, owner shadow.LiveService, desired shadow.ShadowService) {
	c, ok := lc.(*Characteristic)
	if !ok {
		return
	}
	svc, ok := owner.(*Service)
	if !ok || svc.owner == nil {
		return
	}
	acc := svc.owner
	kind := c.kind
	service := desired.DisplayName

	c.c.OnCValueUpdate(func(_ *characteristic.C, newVal, _ any, req *http.Request) {
		if req == nil {
			return
		}
		p.dispatch(acc, service, kind, newVal)
	})
}

func (p *Platform) dispatch(acc *Accessory, service string, kind catalog.Characteristic, value any) {
	acc.mu.Lock()
	deviceType, deviceID := acc.deviceType, acc.deviceID
	acc.mu.Unlock()

	log := p.logger.With("device_id", deviceID, "service", service, "characteristic", string(kind))

	cmd, ok := commandFor(deviceType, deviceID, kind, value)
	if !ok {
		log.Debug("write has no hub effect", "value", value)
		return
	}
	if p.commands == nil {
		log.Warn("no hub connection for command", "command", cmd.String())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := cmd.run(ctx, p.commands); err != nil {
		log.Error("hub command failed", "command", cmd.String(), "error", err)
		return
	}
	log.Info("hub command sent", "command", cmd.String())
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t) //nolint:errcheck // unparsable means false
		return b
	default:
		return number(v) != 0
	}
}

func number(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint8:
		return float64(t)
	case int32:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	}
	return 0
}

func integer(v any) int {
	return int(math.Round(number(v)))
}
