package main

import (
	"os"

	"adpcm-xq/pkg/logger"
	"adpcm-xq/pkg/system"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// loadEnv loads environment variables from an env file; existing ones win
func loadEnv(c *cli.Context) error {
	logger.InitLogger(c.String("log-level"), true)

	filename := c.String("env")
	if filename == "" {
		return nil
	}
	keys, err := system.LoadEnv(filename)
	if err != nil {
		if !c.IsSet("env") && os.IsNotExist(err) {
			return nil // default .env is optional
		}
		return cli.Exit("failed to load "+filename+": "+err.Error(), 1)
	}
	// the file may carry LOG_LEVEL
	if !c.IsSet("log-level") {
		logger.InitLogger("", true)
	}
	log.Debug().Str("file", filename).Strs("keys", keys).Msg("Env file loaded")
	return nil
}

func main() {
	app := &cli.App{
		Name:  "adpcm-xq",
		Usage: "IMA ADPCM encoder with lookahead noise shaping",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "env",
				Value: ".env",
				Usage: "env file with ADPCM_* settings",
			},
		},
		Before: loadEnv,
		Commands: []*cli.Command{
			encodeCommand(),
			decodeCommand(),
			playCommand(),
			recordCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("adpcm-xq failed")
		os.Exit(1)
	}
}
