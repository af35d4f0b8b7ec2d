package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	server          string
	name            string
	room            string
	language        string
	votingFrequency int
	playOnHost      bool
	admin           bool
	email           string
	password        string
	wordService     string
	verbose         bool
}

func (c *Config) validate() error {
	if c.name == "" {
		return errors.New("--name is required")
	}
	if c.server == "" {
		return errors.New("--server is required")
	}
	if c.language != "en" && c.language != "es" {
		return fmt.Errorf("unsupported language %q (want en|es)", c.language)
	}
	if c.votingFrequency < 1 {
		return fmt.Errorf("invalid voting frequency: %d", c.votingFrequency)
	}
	if (c.email == "") != (c.password == "") {
		return errors.New("both --email and --password must be provided together")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("NEUROLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "neurolink",
		Short:         "Terminal client for the NeuroLink Protocol social deduction game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return runSession(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.server, "server", "s", "http://localhost:8080", "relay server base URL (env: NEUROLINK_SERVER)")
	fs.StringVarP(&cfg.name, "name", "n", "", "player name (env: NEUROLINK_NAME)")
	fs.StringVarP(&cfg.room, "room", "r", "", "room code to join; empty hosts a new room (env: NEUROLINK_ROOM)")
	fs.StringVarP(&cfg.language, "language", "l", "en", "secret word language (env: NEUROLINK_LANGUAGE)")
	fs.IntVar(&cfg.votingFrequency, "voting-frequency", 1, "rounds between votes, host only (env: NEUROLINK_VOTING_FREQUENCY)")
	fs.BoolVar(&cfg.playOnHost, "play-on-host", true, "host participates as a player (env: NEUROLINK_PLAY_ON_HOST)")
	fs.BoolVar(&cfg.admin, "admin", false, "admin mode: solo testing, no score reporting (env: NEUROLINK_ADMIN)")
	fs.StringVar(&cfg.email, "email", "", "account email for score tracking (env: NEUROLINK_EMAIL)")
	fs.StringVar(&cfg.password, "password", "", "account password (env: NEUROLINK_PASSWORD)")
	fs.StringVar(&cfg.wordService, "word-service", "", "external word generator URL, host only (env: NEUROLINK_WORD_SERVICE)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: NEUROLINK_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("neurolink v{{.Version}}\n")

	return cmd
}
