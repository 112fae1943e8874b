package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/streetguess/internal/auth"
	"github.com/Seednode/streetguess/internal/locations"
	"github.com/Seednode/streetguess/internal/scores"
)

const tokenTTL = time.Hour

type Config struct {
	bind           string
	database       string
	jwtSecret      string
	mapsAPIKey     string
	maxAttempts    int
	messageRate    float64
	oracleRate     float64
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.jwtSecret == "" {
		return errors.New("--jwt-secret is required")
	}
	if c.database == "" {
		return errors.New("--database is required")
	}
	if c.maxAttempts < 1 {
		return fmt.Errorf("invalid max attempts (must be at least 1): %d", c.maxAttempts)
	}
	if c.messageRate <= 0 {
		return fmt.Errorf("invalid message rate (must be positive): %v", c.messageRate)
	}
	if c.oracleRate <= 0 {
		return fmt.Errorf("invalid oracle rate (must be positive): %v", c.oracleRate)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func newSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Print a random secret suitable for --jwt-secret.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := newSecret()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}

func newTokenCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "token <username>",
		Short: "Create the user if needed and print a bearer token for it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.jwtSecret == "" {
				return errors.New("--jwt-secret is required")
			}

			store, err := scores.Open(cmd.Context(), cfg.database)
			if err != nil {
				return err
			}
			defer store.Close()

			user, err := store.EnsureUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			token, err := auth.NewGate(cfg.jwtSecret, store).Issue(user.ID, user.Username, tokenTTL)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

// bindEnv fills any flag not set on the command line from STREETGUESS_*.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("STREETGUESS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "streetguess",
		Short:         "A street-level geography guessing game for one or more players.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			bindEnv(v, cmd.Flags())
			setupLogging(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&cfg.database, "database", "streetguess.db", "path to the sqlite database (env: STREETGUESS_DATABASE)")
	pfs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "secret used to sign and verify bearer tokens (env: STREETGUESS_JWT_SECRET)")
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: STREETGUESS_VERBOSE)")

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: STREETGUESS_BIND)")
	fs.StringVar(&cfg.mapsAPIKey, "maps-api-key", "", "street view metadata api key; random locations skip the imagery check when empty (env: STREETGUESS_MAPS_API_KEY)")
	fs.IntVar(&cfg.maxAttempts, "max-attempts", locations.DefaultMaxAttempts, "random location draws before falling back to a hotspot (env: STREETGUESS_MAX_ATTEMPTS)")
	fs.Float64Var(&cfg.messageRate, "message-rate", 20, "inbound messages per second allowed per connection (env: STREETGUESS_MESSAGE_RATE)")
	fs.Float64Var(&cfg.oracleRate, "oracle-rate", 10, "street view metadata requests per second (env: STREETGUESS_ORACLE_RATE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: STREETGUESS_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: STREETGUESS_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: STREETGUESS_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are closed (env: STREETGUESS_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: STREETGUESS_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: STREETGUESS_TLS_KEY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: STREETGUESS_VERSION)")

	cmd.AddCommand(newSecretCmd(), newTokenCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("streetguess v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
