// Package main runs the kinematics scenarios from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.viam.com/rdk/logging"

	"dh_arm/kinematics"
)

const (
	flagPreset      = "preset"
	flagConfig      = "config"
	flagJoints      = "joints"
	flagOut         = "out"
	flagParallel    = "parallel"
	flagWorkers     = "workers"
	flagSearchLimit = "search-limit"
	flagVelocity    = "max-velocity"
	flagInterval    = "sample-interval"
	flagAccelTime   = "accel-time"
	flagZeroLength  = "zero-length"
)

func main() {
	if err := realMain(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func realMain(args []string) error {
	logger := logging.NewLogger("dh-cli")

	presetFlag := &cli.StringFlag{
		Name:    flagPreset,
		Aliases: []string{"p"},
		Usage:   fmt.Sprintf("arm model, one of %v", kinematics.PresetNames()),
		Value:   kinematics.PresetIRB120,
	}

	app := &cli.App{
		Name:  "dh-cli",
		Usage: "explore DH arm kinematics and Cartesian trajectories",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				logger.SetLevel(logging.DEBUG)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "describe",
				Usage: "print the DH table, frames and named configurations of a model",
				Flags: []cli.Flag{presetFlag},
				Action: func(c *cli.Context) error {
					return describe(c, logger)
				},
			},
			{
				Name:  "forward",
				Usage: "print the tool pose for a joint configuration",
				Flags: []cli.Flag{
					presetFlag,
					&cli.StringFlag{
						Name:  flagConfig,
						Usage: "named configuration",
						Value: kinematics.ConfigZero,
					},
					&cli.Float64SliceFlag{
						Name:  flagJoints,
						Usage: "joint angles in degrees, overrides --config",
					},
				},
				Action: func(c *cli.Context) error {
					return forward(c, logger)
				},
			},
			{
				Name:  "pose",
				Usage: "solve a single pose on the IRB 120 with the iterative solver",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  flagSearchLimit,
						Usage: "maximum number of restarts",
						Value: 1000,
					},
				},
				Action: func(c *cli.Context) error {
					return singlePose(c, logger)
				},
			},
			{
				Name:  "puma",
				Usage: "solve one pose on the Puma 560 in four closed-form configurations",
				Action: func(c *cli.Context) error {
					return pumaBranches(c, logger)
				},
			},
			{
				Name:  "cube",
				Usage: "trace the edges of a cube with the IRB 120 and render the result",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagOut,
						Usage: "write the figure to `FILE`",
						Value: "cube.png",
					},
					&cli.BoolFlag{
						Name:  flagParallel,
						Usage: "solve samples concurrently from a shared seed",
					},
					&cli.IntFlag{
						Name:  flagWorkers,
						Usage: "parallel workers, defaults to GOMAXPROCS",
					},
					&cli.IntFlag{
						Name:  flagSearchLimit,
						Usage: "restarts per sample",
						Value: 10,
					},
					&cli.Float64Flag{
						Name:  flagVelocity,
						Usage: "per-axis speed limit in m/s",
						Value: 0.5,
					},
					&cli.Float64Flag{
						Name:  flagInterval,
						Usage: "time between samples in seconds",
						Value: 0.02,
					},
					&cli.Float64Flag{
						Name:  flagAccelTime,
						Usage: "corner blend time in seconds",
						Value: 0.2,
					},
					&cli.StringFlag{
						Name:  flagZeroLength,
						Usage: "repeated via points: allow, reject or skip",
						Value: "allow",
					},
				},
				Action: func(c *cli.Context) error {
					return cube(c, logger)
				},
			},
		},
	}
	return app.Run(args)
}
