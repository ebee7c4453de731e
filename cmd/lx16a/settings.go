package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hipsterbrown/lx16a-servo/lx16a"
)

var ledCmd = &cobra.Command{
	Use:   "led <servo> [on|off]",
	Short: "Read or set the status LED",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				on, err := parseOnOff(args[1])
				if err != nil {
					return err
				}
				return servo.SetLED(ctx, on)
			}
			on, err := servo.LEDOn(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "servo %d LED: %s\n", servo.ID(), onOff(on))
			return nil
		})
	},
}

var ledErrorsCmd = &cobra.Command{
	Use:   "led-errors <servo> [mask]",
	Short: "Read or set which faults flash the LED",
	Long: `Read or set which faults flash the LED.

The mask is a number (0-7) or a comma separated list of temperature, voltage
and stall. Use "all" or "none" for every or no fault.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				mask, err := parseLEDMask(args[1])
				if err != nil {
					return err
				}
				return servo.SetLEDErrors(ctx, mask)
			}
			mask, err := servo.LEDErrors(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "servo %d LED errors: %v\n", servo.ID(), mask)
			return nil
		})
	},
}

var torqueCmd = &cobra.Command{
	Use:   "torque <servo> [on|off]",
	Short: "Read or set motor torque",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				on, err := parseOnOff(args[1])
				if err != nil {
					return err
				}
				return servo.SetLoaded(ctx, on)
			}
			on, err := servo.Loaded(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "servo %d torque: %s\n", servo.ID(), onOff(on))
			return nil
		})
	},
}

var setIDCmd = &cobra.Command{
	Use:   "set-id <servo> <new-id>",
	Short: "Change a servo's ID",
	Long: `Change a servo's ID.

Use "all" as the servo to address whatever servo is connected. Only do this
with a single servo on the bus.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		newID, err := parseInt("id", args[1])
		if err != nil {
			return err
		}
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, args[0])
			if err != nil {
				return err
			}
			if servo.IsBroadcast() {
				log.Warn().Msg("setting ID by broadcast; every connected servo will change")
			}
			old := servo.ID()
			if err := servo.SetID(ctx, newID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "servo %d is now %d\n", old, newID)
			return nil
		})
	},
}

var offsetSave bool

var offsetCmd = &cobra.Command{
	Use:   "offset <servo> [value]",
	Short: "Read or adjust the angle offset (-125 to 125)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				v, err := parseInt("offset", args[1])
				if err != nil {
					return err
				}
				if err := servo.AdjustAngleOffset(ctx, v); err != nil {
					return err
				}
			}
			if offsetSave {
				if err := servo.SaveAngleOffset(ctx); err != nil {
					return err
				}
			}
			if len(args) == 2 {
				return nil
			}
			v, err := servo.AngleOffset(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "servo %d offset: %d\n", servo.ID(), v)
			return nil
		})
	},
}

var (
	limitsAngle string
	limitsVin   string
	limitsTemp  int
)

var limitsCmd = &cobra.Command{
	Use:   "limits <servo>",
	Short: "Read or set angle, voltage and temperature limits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, args[0])
			if err != nil {
				return err
			}

			write := false
			if limitsAngle != "" {
				min, max, err := parsePair("angle limits", limitsAngle)
				if err != nil {
					return err
				}
				if err := servo.SetAngleLimits(ctx, min, max); err != nil {
					return err
				}
				write = true
			}
			if limitsVin != "" {
				min, max, err := parsePair("voltage limits", limitsVin)
				if err != nil {
					return err
				}
				if err := servo.SetVinLimits(ctx, min, max); err != nil {
					return err
				}
				write = true
			}
			if cmd.Flags().Changed("temp") {
				if err := servo.SetMaxTemperature(ctx, limitsTemp); err != nil {
					return err
				}
				write = true
			}
			if write {
				return nil
			}

			angle, err := servo.AngleLimits(ctx)
			if err != nil {
				return err
			}
			vin, err := servo.VinLimits(ctx)
			if err != nil {
				return err
			}
			temp, err := servo.MaxTemperature(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "servo %d limits\n", servo.ID())
			fmt.Fprintf(out, "  angle:       %d-%d\n", angle.Min, angle.Max)
			fmt.Fprintf(out, "  voltage:     %d-%d mV\n", vin.Min, vin.Max)
			fmt.Fprintf(out, "  temperature: %d C\n", temp)
			return nil
		})
	},
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func init() {
	offsetCmd.Flags().BoolVar(&offsetSave, "save", false, "Store the current offset in flash")

	limitsCmd.Flags().StringVar(&limitsAngle, "angle", "", "Angle limits as min,max (0-1000)")
	limitsCmd.Flags().StringVar(&limitsVin, "vin", "", "Voltage limits as min,max in mV (4500-12000)")
	limitsCmd.Flags().IntVar(&limitsTemp, "temp", 0, "Maximum temperature in C (50-100)")

	rootCmd.AddCommand(ledCmd, ledErrorsCmd, torqueCmd, setIDCmd, offsetCmd, limitsCmd)
}
