package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/domain/lookup"
	"github.com/hms/hms/internal/kiosk"
	"github.com/hms/hms/internal/scanner"
)

func main() {
	var (
		serverURL string
		token     string
		tenant    string
		owner     string
		device    string
	)

	rootCmd := &cobra.Command{
		Use:   "hms-kiosk",
		Short: "Bedside scanning station",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKiosk(serverURL, token, tenant, owner, device)
		},
	}
	rootCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "API server base URL")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("KIOSK_TOKEN"), "Bearer token for the API server")
	rootCmd.Flags().StringVar(&tenant, "tenant", "", "Tenant identifier sent with each lookup")
	rootCmd.Flags().StringVar(&owner, "owner", "", "Session owner id for the scanner claim (defaults to hostname)")
	rootCmd.Flags().StringVar(&device, "device", "", "Capture device to use instead of auto-selection")

	listCmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := scanner.NewVideoDeviceManager().Enumerate(context.Background())
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("no capture devices found")
				return nil
			}
			for _, d := range devices {
				fmt.Printf("%-16s %-12s %s\n", d.ID, d.Facing, d.Label)
			}
			return nil
		},
	}
	rootCmd.AddCommand(listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runKiosk(serverURL, token, tenant, owner, device string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if owner == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "kiosk"
		}
		owner = host
	}

	client := kiosk.NewClient(kiosk.ClientConfig{
		BaseURL: serverURL,
		Token:   token,
		Tenant:  tenant,
	})

	devs := scanner.NewVideoDeviceManager()
	ctl := scanner.NewController(scanner.Options{
		Devices: devs,
		Decoder: scanner.NewZbarDecoder(),
		OwnerID: owner,
		Logger:  logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info().Msg("shutting down")
		cancel()
	}()

	if err := ctl.Start(ctx); err != nil {
		return fmt.Errorf("starting scanner: %w", err)
	}
	defer ctl.Stop(context.Background()) //nolint:errcheck

	if device != "" {
		if err := ctl.SwitchDevice(ctx, device); err != nil {
			return fmt.Errorf("switching to %s: %w", device, err)
		}
	}

	// SIGUSR1 toggles visibility (pause/resume without releasing the claim),
	// SIGUSR2 cycles to the next capture device. Both are how an attendant
	// scripts the kiosk from outside without stopping the session.
	pauseSig := make(chan os.Signal, 1)
	signal.Notify(pauseSig, syscall.SIGUSR1)
	switchSig := make(chan os.Signal, 1)
	signal.Notify(switchSig, syscall.SIGUSR2)
	go func() {
		visible := true
		for {
			select {
			case <-pauseSig:
				if err := ctl.SetVisible(ctx, !visible); err != nil {
					logger.Warn().Err(err).Msg("could not toggle visibility")
					continue
				}
				visible = !visible
				logger.Info().Bool("visible", visible).Msg("visibility toggled")
			case <-switchSig:
				next, err := nextDeviceID(ctx, devs, ctl.CurrentDevice().ID)
				if err != nil {
					logger.Warn().Err(err).Msg("no device to switch to")
					continue
				}
				if err := ctl.SwitchDevice(ctx, next); err != nil {
					logger.Warn().Err(err).Str("device", next).Msg("device switch failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Info().Str("device", ctl.CurrentDevice().ID).Msg("ready, waiting for scans")

	for {
		code, err := ctl.WaitForCode(ctx, time.Minute)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, scanner.ErrDecodeTimeout):
			continue
		case err != nil:
			return err
		}

		view, err := client.Resolve(ctx, code)
		switch {
		case errors.Is(err, lookup.ErrInvalidFormat):
			logger.Warn().Str("code", code).Msg("not a medical identifier")
		case errors.Is(err, lookup.ErrNotFound):
			logger.Warn().Str("code", code).Msg("no patient with this identifier")
		case err != nil:
			logger.Error().Err(err).Str("code", code).Msg("lookup failed")
		default:
			fmt.Printf("%s  %s %s  active=%t\n", view.MRN, view.FirstName, view.LastName, view.Active)
			if view.Clinical != nil {
				fmt.Printf("  blood group: %s  diagnosis: %s\n", view.Clinical.BloodGroup, view.Clinical.LatestDiagnosis)
			}
		}
	}
}

// nextDeviceID picks the capture device after current, wrapping around.
func nextDeviceID(ctx context.Context, devs scanner.DeviceManager, current string) (string, error) {
	devices, err := devs.Enumerate(ctx)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", scanner.ErrDeviceUnavailable
	}
	for i, d := range devices {
		if d.ID == current {
			return devices[(i+1)%len(devices)].ID, nil
		}
	}
	return devices[0].ID, nil
}
