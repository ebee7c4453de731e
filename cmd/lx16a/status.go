package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hipsterbrown/lx16a-servo/lx16a"
)

var statusCmd = &cobra.Command{
	Use:   "status <servo>...",
	Short: "Show position, sensors and settings of servos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			for _, arg := range args {
				servo, err := servoArg(bus, arg)
				if err != nil {
					return err
				}
				if servo.IsBroadcast() {
					return fmt.Errorf("status needs a single servo, not %q", arg)
				}
				if err := printStatus(ctx, cmd.OutOrStdout(), servo); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func printStatus(ctx context.Context, out io.Writer, servo *lx16a.Servo) error {
	pos, err := servo.Position(ctx)
	if err != nil {
		return err
	}
	temp, err := servo.Temperature(ctx)
	if err != nil {
		return err
	}
	vin, err := servo.Voltage(ctx)
	if err != nil {
		return err
	}
	motor, err := servo.MotorMode(ctx)
	if err != nil {
		return err
	}
	loaded, err := servo.Loaded(ctx)
	if err != nil {
		return err
	}
	led, err := servo.LEDOn(ctx)
	if err != nil {
		return err
	}
	ledErrs, err := servo.LEDErrors(ctx)
	if err != nil {
		return err
	}
	angle, err := servo.AngleLimits(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "servo %d\n", servo.ID())
	fmt.Fprintf(out, "  position:    %d\n", pos)
	fmt.Fprintf(out, "  temperature: %d C\n", temp)
	fmt.Fprintf(out, "  voltage:     %d mV\n", vin)
	if motor.Mode == lx16a.ModeMotor {
		fmt.Fprintf(out, "  mode:        %v (speed %d)\n", motor.Mode, motor.Speed)
	} else {
		fmt.Fprintf(out, "  mode:        %v\n", motor.Mode)
	}
	fmt.Fprintf(out, "  torque:      %s\n", onOff(loaded))
	fmt.Fprintf(out, "  LED:         %s\n", onOff(led))
	fmt.Fprintf(out, "  LED errors:  %v\n", ledErrs)
	fmt.Fprintf(out, "  angle range: %d-%d\n", angle.Min, angle.Max)
	return nil
}

var (
	scanStart int
	scanEnd   int
	scanPerID time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find servos on the bus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			log.Info().Int("start", scanStart).Int("end", scanEnd).Msg("scanning")
			found, err := bus.Scan(ctx, scanStart, scanEnd, scanPerID)
			out := cmd.OutOrStdout()
			for _, f := range found {
				fmt.Fprintf(out, "found servo %d\n", f.ID)
			}
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintln(out, "no servos found")
			}
			return nil
		})
	},
}

func init() {
	scanCmd.Flags().IntVar(&scanStart, "start", 0, "First ID to probe")
	scanCmd.Flags().IntVar(&scanEnd, "end", lx16a.MaxServoID, "Last ID to probe")
	scanCmd.Flags().DurationVar(&scanPerID, "per-id", 50*time.Millisecond, "Reply timeout for each probe")

	rootCmd.AddCommand(statusCmd, scanCmd)
}
