package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/hudlink-protocol/hudlink-go/pkg/log"
)

// BLE errors.
var (
	ErrDeviceNotFound        = errors.New("glasses not found")
	ErrNotConnected          = errors.New("not connected")
	ErrCharacteristicMissing = errors.New("required characteristic not found")
)

// DefaultScanTimeout bounds the scan for advertising glasses.
const DefaultScanTimeout = 10 * time.Second

// BLEConfig configures a BLECentral.
type BLEConfig struct {
	// NamePrefix selects devices by advertised name. Default "G2".
	NamePrefix string

	// PreferredArm is a name substring selecting which arm to connect
	// to when both advertise. Default "_L_".
	PreferredArm string

	// ScanTimeout bounds the scan. Zero means DefaultScanTimeout.
	ScanTimeout time.Duration

	// Adapter is the bluetooth adapter. Nil means the default adapter.
	Adapter *bluetooth.Adapter

	// Logger receives transport state events. Nil disables logging.
	Logger log.Logger

	// ConnectionID tags log events.
	ConnectionID string
}

// DefaultBLEConfig returns a config with default values.
func DefaultBLEConfig() BLEConfig {
	return BLEConfig{
		NamePrefix:   "G2",
		PreferredArm: "_L_",
		ScanTimeout:  DefaultScanTimeout,
	}
}

// BLECentral connects to the glasses over BLE: scan by name, connect,
// subscribe both notify characteristics, deliver chunks to the Handler.
// Writes go through the write characteristic without response.
type BLECentral struct {
	cfg     BLEConfig
	handler Handler
	adapter *bluetooth.Adapter

	mu        sync.Mutex
	device    bluetooth.Device
	writeChar *bluetooth.DeviceCharacteristic
	connected bool
	closing   bool
}

// NewBLECentral creates a BLECentral delivering events to handler.
func NewBLECentral(handler Handler, cfg BLEConfig) *BLECentral {
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "G2"
	}
	if cfg.PreferredArm == "" {
		cfg.PreferredArm = "_L_"
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	if cfg.Adapter == nil {
		cfg.Adapter = bluetooth.DefaultAdapter
	}
	return &BLECentral{cfg: cfg, handler: handler, adapter: cfg.Adapter}
}

// Connect scans for the glasses and brings the link up. On success the
// Handler has received OnConnect and notifications are flowing.
func (c *BLECentral) Connect(ctx context.Context) error {
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("enabling bluetooth adapter: %w", err)
	}

	result, err := c.scan(ctx)
	if err != nil {
		return err
	}
	c.logState("scanning", "connecting", result.LocalName())

	device, err := c.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", result.Address.String(), err)
	}

	if err := c.subscribe(device); err != nil {
		device.Disconnect()
		return err
	}

	c.mu.Lock()
	c.device = device
	c.connected = true
	c.closing = false
	c.mu.Unlock()

	// Detect the peripheral dropping the link on its own.
	c.adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		if connected {
			return
		}
		c.mu.Lock()
		wasConnected := c.connected && d.Address == c.device.Address
		deliberate := c.closing
		c.connected = false
		c.mu.Unlock()

		if wasConnected && !deliberate {
			c.logState("connected", "disconnected", "link lost")
			c.handler.OnDisconnect(ErrNotConnected)
		}
	})

	c.logState("connecting", "connected", result.Address.String())
	c.handler.OnConnect()
	return nil
}

// scan looks for an advertising device matching the configured name,
// preferring the configured arm when it shows up first.
func (c *BLECentral) scan(ctx context.Context) (bluetooth.ScanResult, error) {
	var (
		mu     sync.Mutex
		best   bluetooth.ScanResult
		found  bool
		isPref bool
	)

	scanCtx, cancel := context.WithTimeout(ctx, c.cfg.ScanTimeout)
	defer cancel()
	go func() {
		<-scanCtx.Done()
		c.adapter.StopScan()
	}()

	err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		name := result.LocalName()
		if !strings.Contains(name, c.cfg.NamePrefix) {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if !found {
			best = result
			found = true
		}
		if strings.Contains(name, c.cfg.PreferredArm) {
			best = result
			isPref = true
		}
		if isPref {
			adapter.StopScan()
		}
	})
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("scanning: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !found {
		if ctx.Err() != nil {
			return bluetooth.ScanResult{}, ctx.Err()
		}
		return bluetooth.ScanResult{}, ErrDeviceNotFound
	}
	return best, nil
}

// subscribe discovers the vendor characteristics and enables both
// notification streams.
func (c *BLECentral) subscribe(device bluetooth.Device) error {
	services, err := device.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("discovering services: %w", err)
	}

	writeUUID, _ := CharacteristicUUID(CharWrite)
	controlUUID, _ := CharacteristicUUID(CharControlNotify)
	displayUUID, _ := CharacteristicUUID(CharDisplayNotify)

	var writeChar, controlChar, displayChar *bluetooth.DeviceCharacteristic
	for i := range services {
		chars, err := services[i].DiscoverCharacteristics(nil)
		if err != nil {
			continue
		}
		for j := range chars {
			switch chars[j].UUID() {
			case writeUUID:
				writeChar = &chars[j]
			case controlUUID:
				controlChar = &chars[j]
			case displayUUID:
				displayChar = &chars[j]
			}
		}
	}

	if writeChar == nil || controlChar == nil {
		return ErrCharacteristicMissing
	}

	err = controlChar.EnableNotifications(func(buf []byte) {
		c.handler.OnChunk(ChannelControl, append([]byte(nil), buf...))
	})
	if err != nil {
		return fmt.Errorf("subscribing control channel: %w", err)
	}

	// The display channel is optional; older firmware does not expose it.
	if displayChar != nil {
		err = displayChar.EnableNotifications(func(buf []byte) {
			c.handler.OnChunk(ChannelDisplay, append([]byte(nil), buf...))
		})
		if err != nil {
			return fmt.Errorf("subscribing display channel: %w", err)
		}
	}

	c.writeChar = writeChar
	return nil
}

// Write sends one physical frame through the write characteristic.
func (c *BLECentral) Write(data []byte) error {
	c.mu.Lock()
	connected := c.connected
	ch := c.writeChar
	c.mu.Unlock()

	if !connected || ch == nil {
		return ErrNotConnected
	}

	n, err := ch.WriteWithoutResponse(data)
	if err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("writing frame: short write (%d of %d bytes)", n, len(data))
	}
	return nil
}

// Close disconnects from the glasses. The Handler receives OnDisconnect
// with a nil error.
func (c *BLECentral) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.connected = false
	device := c.device
	c.mu.Unlock()

	err := device.Disconnect()
	c.logState("connected", "disconnected", "closed")
	c.handler.OnDisconnect(nil)
	return err
}

func (c *BLECentral) logState(from, to, reason string) {
	if c.cfg.Logger == nil {
		return
	}
	c.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.cfg.ConnectionID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}
