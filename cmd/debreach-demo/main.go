// Copyright 2020 Mike Helmick
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command debreach-demo serves a small site that reflects user input next to
// a CSRF token over compressed responses, the setting BREACH attacks, with
// both debreach defenses installed. It can also mask and unmask tokens from
// the command line.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	debreach "github.com/mikehelmick/go-debreach"
	"github.com/mikehelmick/go-debreach/internal/config"
	"github.com/mikehelmick/go-debreach/internal/logging"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "debreach-demo",
		Usage:   "BREACH mitigation demo server and token tool",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Commands: []*cli.Command{
			serveCommand(),
			maskCommand(),
			unmaskCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the demo server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"DEBREACH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.addr)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: trace, debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Masking mode: stream or block",
			},
		},
		Action: func(c *cli.Context) error {
			overrides := make(map[string]any)
			for flag, key := range map[string]string{
				"addr":      "server.addr",
				"log-level": "log.level",
				"mode":      "masking.mode",
			} {
				if c.IsSet(flag) {
					overrides[key] = c.String(flag)
				}
			}

			cfg, err := config.NewLoader(config.WithConfigFile(c.String("config"))).Load(overrides)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New("debreach-demo", cfg.Log, nil)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logger.Info("starting", "version", version, "commit", commit, "mode", cfg.Masking.Mode)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}
}

func tokenFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "mode",
			Usage: "Masking mode: stream or block",
			Value: string(debreach.ModeStream),
		},
		&cli.BoolFlag{
			Name:  "encode-key",
			Usage: "Base64 encode the key segment",
		},
	}
}

func maskerFromFlags(c *cli.Context) (*debreach.Masker, error) {
	cfg := debreach.DefaultConfig()
	cfg.Mode = debreach.Mode(c.String("mode"))
	cfg.EncodeKey = c.Bool("encode-key")
	return debreach.NewMasker(cfg)
}

func maskCommand() *cli.Command {
	return &cli.Command{
		Name:      "mask",
		Usage:     "Mask a token",
		ArgsUsage: "TOKEN",
		Flags:     tokenFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("mask takes exactly one token", 2)
			}
			m, err := maskerFromFlags(c)
			if err != nil {
				return err
			}
			wire, err := m.Encode(c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, wire)
			return nil
		},
	}
}

func unmaskCommand() *cli.Command {
	return &cli.Command{
		Name:      "unmask",
		Usage:     "Recover the token from a masked value",
		ArgsUsage: "KEY$VALUE",
		Flags:     tokenFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("unmask takes exactly one value", 2)
			}
			m, err := maskerFromFlags(c)
			if err != nil {
				return err
			}
			token, err := m.Decode(c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}
