//go:build linux

package privilege

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// fprintdProvider authenticates through the fprintd D-Bus service, the
// standard Linux fingerprint daemon.
type fprintdProvider struct{}

func newPlatformProvider() BiometricProvider { return fprintdProvider{} }

func (fprintdProvider) devices() (*dbus.Conn, []dbus.ObjectPath, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, nil, err
	}
	manager := conn.Object("net.reactivated.Fprint", "/net/reactivated/Fprint/Manager")
	var devices []dbus.ObjectPath
	if err := manager.Call("net.reactivated.Fprint.Manager.GetDevices", 0).Store(&devices); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, devices, nil
}

func (p fprintdProvider) Available() bool {
	conn, devices, err := p.devices()
	if err != nil {
		return false
	}
	defer conn.Close()
	return len(devices) > 0
}

func (p fprintdProvider) Authenticate(ctx context.Context, reason string) error {
	conn, devices, err := p.devices()
	if err != nil {
		return fmt.Errorf("connecting to fprintd: %w", err)
	}
	defer conn.Close()
	if len(devices) == 0 {
		return ErrBiometricUnavailable
	}

	device := conn.Object("net.reactivated.Fprint", devices[0])
	if call := device.Call("net.reactivated.Fprint.Device.Claim", 0, ""); call.Err != nil {
		return fmt.Errorf("claiming fprintd device: %w", call.Err)
	}
	defer device.Call("net.reactivated.Fprint.Device.Release", 0)

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("net.reactivated.Fprint.Device"),
		dbus.WithMatchObjectPath(devices[0]),
	); err != nil {
		return fmt.Errorf("subscribing to fprintd signals: %w", err)
	}

	if call := device.Call("net.reactivated.Fprint.Device.VerifyStart", 0, "any"); call.Err != nil {
		return fmt.Errorf("starting fprintd verify: %w", call.Err)
	}
	defer device.Call("net.reactivated.Fprint.Device.VerifyStop", 0)

	signals := make(chan *dbus.Signal, 1)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-signals:
			if sig.Name != "net.reactivated.Fprint.Device.VerifyStatus" || len(sig.Body) == 0 {
				continue
			}
			result, _ := sig.Body[0].(string)
			switch result {
			case "verify-match":
				return nil
			case "verify-no-match":
				return ErrBiometricDenied
			case "verify-retry", "verify-swipe-too-short", "verify-finger-not-centered", "verify-remove-and-retry":
				continue
			default:
				return fmt.Errorf("fprintd verify failed: %s", result)
			}
		}
	}
}
