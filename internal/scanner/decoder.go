package scanner

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// Decoder runs a decode pipeline against one capture device, calling emit
// for every payload it reads until stopped.
type Decoder interface {
	Start(ctx context.Context, deviceID string, emit func(code string)) error
	// Stop tears the pipeline down, blocking until it exits or ctx ends.
	// The pipeline is killed either way.
	Stop(ctx context.Context) error
}

// zbarDecoder shells out to zbarcam, which prints one decoded payload per
// line in --raw mode.
type zbarDecoder struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

func NewZbarDecoder() Decoder {
	return &zbarDecoder{}
}

func (d *zbarDecoder) Start(ctx context.Context, deviceID string, emit func(code string)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd != nil {
		return fmt.Errorf("decoder already running")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, "zbarcam", "--raw", "--nodisplay", deviceID)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("attaching to decoder output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: starting zbarcam on %s: %v", ErrDeviceUnavailable, deviceID, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			if code := sc.Text(); code != "" {
				emit(code)
			}
		}
		cmd.Wait() //nolint:errcheck // exit status is expected to be non-zero on kill
	}()

	d.cmd = cmd
	d.cancel = cancel
	d.done = done
	return nil
}

func (d *zbarDecoder) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cmd, d.cancel, d.done = nil, nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("decoder did not exit cleanly: %w", ctx.Err())
	}
}
