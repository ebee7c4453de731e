package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hipsterbrown/lx16a-servo/lx16a"
)

var (
	moveTime time.Duration
	moveWait bool
)

var moveCmd = &cobra.Command{
	Use:   "move <servo> <position>",
	Short: "Move a servo to a position (0-1000)",
	Long: `Move a servo to a position between 0 and 1000 (0-240 degrees).

With --wait the move is stored on the servo and only runs after "lx16a start",
which lets several servos begin together.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		position, err := parseInt("position", args[1])
		if err != nil {
			return err
		}
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, args[0])
			if err != nil {
				return err
			}
			if moveWait {
				return servo.PrepareMove(ctx, position, moveTime)
			}
			return servo.MoveTo(ctx, position, moveTime)
		})
	},
}

var startCmd = &cobra.Command{
	Use:   "start [servo]",
	Short: "Run moves stored with move --wait (all servos by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, firstOr(args, "all"))
			if err != nil {
				return err
			}
			return servo.StartMove(ctx)
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [servo]",
	Short: "Stop motion (all servos by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, firstOr(args, "all"))
			if err != nil {
				return err
			}
			return servo.StopMove(ctx)
		})
	},
}

var positionCmd = &cobra.Command{
	Use:   "position <servo>...",
	Short: "Read servo positions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			for _, arg := range args {
				servo, err := servoArg(bus, arg)
				if err != nil {
					return err
				}
				pos, err := servo.Position(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "servo %d: %d\n", servo.ID(), pos)
			}
			return nil
		})
	},
}

var motorCmd = &cobra.Command{
	Use:   "motor <servo> <speed>",
	Short: "Rotate continuously at a speed (-1000 to 1000)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		speed, err := parseInt("speed", args[1])
		if err != nil {
			return err
		}
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, args[0])
			if err != nil {
				return err
			}
			return servo.SetMotorMode(ctx, speed)
		})
	},
}

var servoModeCmd = &cobra.Command{
	Use:   "servo-mode <servo>",
	Short: "Return a servo to position control",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBus(cmd, func(ctx context.Context, bus *lx16a.Bus) error {
			servo, err := servoArg(bus, args[0])
			if err != nil {
				return err
			}
			return servo.SetServoMode(ctx)
		})
	},
}

func firstOr(args []string, def string) string {
	if len(args) > 0 {
		return args[0]
	}
	return def
}

func init() {
	moveCmd.Flags().DurationVarP(&moveTime, "time", "t", time.Second, "Time to reach the position (max 30s)")
	moveCmd.Flags().BoolVar(&moveWait, "wait", false, "Store the move until start")

	rootCmd.AddCommand(moveCmd, startCmd, stopCmd, positionCmd, motorCmd, servoModeCmd)
}
