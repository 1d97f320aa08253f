package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mlserving/imageclient/config"
	"github.com/mlserving/imageclient/pkg/classify"
)

func main() {
	app := &cli.App{
		Name:      "imageclient",
		Usage:     "classify images with a remote ensemble model served over HTTP or gRPC",
		ArgsUsage: "IMAGE_FILENAME",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose output",
			},
			&cli.IntFlag{
				Name:    "classes",
				Aliases: []string{"c"},
				Value:   1,
				Usage:   "Number of class results to report",
			},
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Value:   "localhost:8000",
				Usage:   "Inference server URL",
			},
			&cli.StringFlag{
				Name:    "protocol",
				Aliases: []string{"i"},
				Value:   "HTTP",
				Usage:   "Protocol (HTTP/gRPC) used to communicate with the inference service",
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Value:   "preprocess_resnet50_ensemble",
				Usage:   "Name of the served ensemble model",
			},
			&cli.StringFlag{
				Name:  "model-version",
				Usage: "Version of the served model, empty picks the latest",
			},
			&cli.StringFlag{
				Name:  "config",
				Value: "configs/config.yaml",
				Usage: "configuration file",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		// Diagnostics go to standard output, like the reference clients.
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: input image or input folder")
	}

	if err := config.Init(c.String("config")); err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	// Flags take precedence over the file and environment configuration.
	if c.Bool("verbose") {
		config.Config.Debug = true
	}
	if c.IsSet("url") {
		config.Config.Server.URL = c.String("url")
	}
	if c.IsSet("protocol") {
		config.Config.Server.Protocol = c.String("protocol")
	}
	if c.IsSet("model") {
		config.Config.Model.Name = c.String("model")
	}
	if c.IsSet("model-version") {
		config.Config.Model.Version = c.String("model-version")
	}
	if c.IsSet("classes") {
		config.Config.Model.Classes = c.Int("classes")
	}

	return classify.Run(c.Context, &config.Config, c.Args().First(), os.Stdout)
}
