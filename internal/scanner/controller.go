package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateActive       State = "active"
	StateErrored      State = "errored"
)

const (
	defaultStartRetries = 2
	defaultRetryBackoff = 300 * time.Millisecond
	defaultStopTimeout  = 2 * time.Second
	defaultSettleDelay  = 200 * time.Millisecond
)

type Options struct {
	Devices  DeviceManager
	Decoder  Decoder
	Registry *Registry
	OwnerID  string

	// OnCode receives every accepted payload. Optional; WaitForCode works
	// without it.
	OnCode func(code string)

	Logger zerolog.Logger

	StartRetries int           // extra decoder start attempts after the first
	RetryBackoff time.Duration // fixed delay between attempts
	StopTimeout  time.Duration // how long Stop waits for the decoder to exit
	SettleDelay  time.Duration // pause between stopping and restarting on a switch
}

// Controller owns the scan lifecycle for one session: claiming the hardware,
// starting and stopping the decode pipeline, switching devices, and pausing
// while the operator looks away. All public methods serialize on one mutex;
// overlapping calls from UI event handlers cannot interleave mid-transition.
type Controller struct {
	mu   sync.Mutex
	opts Options

	state   State
	device  Device
	visible bool
	paused  bool

	// generation increments on every transition that invalidates in-flight
	// decode output. A payload emitted under an old generation is dropped,
	// so a code decoded just before Stop never surfaces after it.
	generation uint64

	// heartbeat keeps the registry claim fresh while the session holds it,
	// including across a pause. Closed on Stop or a failed transition.
	heartbeat chan struct{}

	waiters map[chan string]struct{}
}

func NewController(opts Options) *Controller {
	if opts.StartRetries == 0 {
		opts.StartRetries = defaultStartRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry(0)
	}
	if opts.OwnerID == "" {
		opts.OwnerID = "local"
	}
	return &Controller{
		opts:    opts,
		state:   StateIdle,
		visible: true,
		waiters: make(map[chan string]struct{}),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) CurrentDevice() Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// Start claims the scanner, picks a device and brings the decode pipeline
// up. Starting an already-running controller is a no-op. A failed start
// leaves the controller errored and the claim released, so another session
// can take over immediately.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateActive || c.state == StateInitializing {
		return nil
	}
	if err := c.opts.Registry.Acquire(c.opts.OwnerID); err != nil {
		return err
	}
	c.state = StateInitializing

	devices, err := c.opts.Devices.Enumerate(ctx)
	if err != nil {
		c.failLocked()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	device, err := PickDevice(devices)
	if err != nil {
		c.failLocked()
		return err
	}

	if err := c.startDecoderLocked(ctx, device); err != nil {
		c.failLocked()
		return err
	}
	c.device = device
	c.state = StateActive
	c.paused = false
	c.startHeartbeatLocked()
	c.opts.Logger.Info().Str("device", device.ID).Str("label", device.Label).Msg("scanner started")
	return nil
}

// Stop tears the pipeline down and releases the claim. It never fails: if
// the decoder does not exit within the stop timeout the teardown proceeds
// anyway and the stall is logged. Stopping an idle controller is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle {
		return nil
	}
	c.stopDecoderLocked(ctx)
	c.state = StateIdle
	c.paused = false
	c.device = Device{}
	c.stopHeartbeatLocked()
	c.opts.Registry.Release(c.opts.OwnerID)
	c.opts.Logger.Info().Msg("scanner stopped")
	return nil
}

// SwitchDevice moves an active scan to another capture device, keeping the
// claim. The old pipeline is stopped first and the new one started after a
// short settle delay, since opening a device the previous process has not
// fully released fails on most drivers.
func (c *Controller) SwitchDevice(ctx context.Context, deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return ErrNotActive
	}
	if deviceID == c.device.ID {
		return nil
	}

	devices, err := c.opts.Devices.Enumerate(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	var target *Device
	for i := range devices {
		if devices[i].ID == deviceID {
			target = &devices[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, deviceID)
	}

	c.stopDecoderLocked(ctx)
	time.Sleep(c.opts.SettleDelay)

	if err := c.startDecoderLocked(ctx, *target); err != nil {
		c.failLocked()
		return err
	}
	c.device = *target
	c.opts.Logger.Info().Str("device", target.ID).Msg("scanner switched device")
	return nil
}

// SetVisible pauses decoding while the scan surface is hidden and resumes it
// when shown again. The claim is held across a pause; hiding the surface is
// not a release. Resuming re-acquires the claim first: if the pause outlived
// the freshness window and another session took the scanner over, the resume
// backs off with ErrScannerBusy and the session stays paused.
func (c *Controller) SetVisible(ctx context.Context, visible bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.visible = visible

	switch {
	case !visible && c.state == StateActive && !c.paused:
		c.stopDecoderLocked(ctx)
		c.paused = true
		c.opts.Logger.Debug().Msg("scanner paused while hidden")
	case visible && c.paused:
		if err := c.opts.Registry.Acquire(c.opts.OwnerID); err != nil {
			c.opts.Logger.Warn().Str("holder", c.opts.Registry.Holder()).Msg("claim lost while hidden")
			return err
		}
		if err := c.startDecoderLocked(ctx, c.device); err != nil {
			c.failLocked()
			return err
		}
		c.paused = false
		c.opts.Logger.Debug().Msg("scanner resumed")
	}
	return nil
}

// WaitForCode blocks until the next accepted payload, the timeout, or ctx.
func (c *Controller) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return "", ErrNotActive
	}
	ch := make(chan string, 1)
	c.waiters[ch] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.waiters, ch)
		c.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-ch:
		return code, nil
	case <-timer.C:
		return "", ErrDecodeTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// startDecoderLocked brings the pipeline up with bounded retries. Camera
// drivers fail transiently right after a previous close, so a couple of
// spaced attempts recover most of those.
func (c *Controller) startDecoderLocked(ctx context.Context, device Device) error {
	c.generation++
	gen := c.generation
	emit := func(code string) { c.deliver(gen, code) }

	var err error
	for attempt := 0; attempt <= c.opts.StartRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.opts.RetryBackoff)
		}
		if err = c.opts.Decoder.Start(ctx, device.ID, emit); err == nil {
			return nil
		}
		c.opts.Logger.Warn().Err(err).Str("device", device.ID).Int("attempt", attempt+1).Msg("decoder start failed")
	}
	return fmt.Errorf("starting decoder on %s: %w", device.ID, err)
}

// stopDecoderLocked invalidates in-flight output, then gives the decoder a
// bounded window to exit. Teardown completes whether or not it does.
func (c *Controller) stopDecoderLocked(ctx context.Context) {
	c.generation++

	stopCtx, cancel := context.WithTimeout(context.Background(), c.opts.StopTimeout)
	defer cancel()
	if err := c.opts.Decoder.Stop(stopCtx); err != nil {
		c.opts.Logger.Warn().Err(err).Msg("decoder did not stop cleanly")
	}
}

// failLocked records an errored state and releases the claim.
func (c *Controller) failLocked() {
	c.state = StateErrored
	c.device = Device{}
	c.stopHeartbeatLocked()
	c.opts.Registry.Release(c.opts.OwnerID)
}

// startHeartbeatLocked refreshes the claim at a third of the registry TTL so
// a healthy session never goes stale between decodes or during a pause.
func (c *Controller) startHeartbeatLocked() {
	if c.heartbeat != nil {
		return
	}
	interval := c.opts.Registry.TTL() / 3
	if interval <= 0 {
		interval = time.Second
	}
	stop := make(chan struct{})
	c.heartbeat = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.opts.Registry.Touch(c.opts.OwnerID)
			case <-stop:
				return
			}
		}
	}()
}

func (c *Controller) stopHeartbeatLocked() {
	if c.heartbeat != nil {
		close(c.heartbeat)
		c.heartbeat = nil
	}
}

// deliver routes one decoded payload to the callback and any waiters.
// Payloads from a superseded generation, or arriving while paused or hidden,
// are dropped.
func (c *Controller) deliver(gen uint64, code string) {
	c.mu.Lock()
	if gen != c.generation || c.state != StateActive || c.paused || !c.visible {
		c.mu.Unlock()
		return
	}
	c.opts.Registry.Touch(c.opts.OwnerID)
	cb := c.opts.OnCode
	for ch := range c.waiters {
		select {
		case ch <- code:
		default:
		}
	}
	c.mu.Unlock()

	if cb != nil {
		cb(code)
	}
}
