package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFileEnvName = "CARTCTL_CONFIG_FILE"

type apiTLS struct {
	CA   string `mapstructure:"ca"`
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

func (t apiTLS) Enabled() bool {
	return t.CA != ""
}

type api struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	TLS     apiTLS        `mapstructure:"tls"`
}

type guestStore struct {
	Path string `mapstructure:"path"`
}

type auth struct {
	TokenFile string `mapstructure:"token_file"`
}

type Config struct {
	LogLevel   slog.Level `mapstructure:"log_level"`
	API        api        `mapstructure:"api"`
	GuestStore guestStore `mapstructure:"guest_store"`
	Auth       auth       `mapstructure:"auth"`
}

func Load() Config {
	viper.SetConfigFile(getConfigFilepath())
	setDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		die(err)
	}

	var cfg Config
	err = viper.UnmarshalExact(&cfg)
	if err != nil {
		die(err)
	}

	return cfg
}

func setDefaults() {
	viper.SetDefault("api.timeout", 10*time.Second)
	viper.SetDefault("guest_store.path", defaultStorePath())
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cartctl", "guest-cart")
	}
	return filepath.Join(home, ".cartctl", "guest-cart")
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	cmdLine.ParseErrorsWhitelist.UnknownFlags = true
	arg := cmdLine.String("config", "/config.yaml", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

func (c Config) Print() {
	tamplate := `
	General:
	LogLevel=%q

	API:
	BaseURL=%q
	Timeout=%q
	TLS.CA=%q

	GuestStore:
	Path=%q

	Auth:
	TokenFile=%q

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(tamplate, "\n"),
		c.LogLevel,
		c.API.BaseURL,
		c.API.Timeout,
		c.API.TLS.CA,
		c.GuestStore.Path,
		c.Auth.TokenFile,
	)
}
