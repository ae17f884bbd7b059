package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultRPC = "https://api.mainnet-beta.solana.com"
	DefaultWS  = "wss://api.mainnet-beta.solana.com"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL               string
	WSURL                string
	PrivateKey           string
	ProgramID            string
	ProviderFeeCollector string
	Simulate             bool
	LedgerPath           string
	LogLevel             string
	CacheSize            int
}

// Load merges config file, environment variables, and flags into Config.
// Variables from a .env file near the working directory are visible as
// environment variables but never override the real environment.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := LoadEnv(); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("BONDSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// names used by the rest of the solana tooling
	_ = v.BindEnv("rpc", "BONDSWAP_RPC", "SOLANA_RPC_URL")
	_ = v.BindEnv("ws", "BONDSWAP_WS", "SOLANA_WS_RPC_URL")
	_ = v.BindEnv("private-key", "BONDSWAP_PRIVATE_KEY", "SOLANA_PRIVATE_KEY")

	v.SetDefault("rpc", DefaultRPC)
	v.SetDefault("ws", DefaultWS)
	v.SetDefault("program-id", "4EYSfZxBY9h9JjbuHks75chtTn85ucNRqahsH5YcexVa")
	v.SetDefault("provider-fee-collector", "CohZhJhnHkdutc7iktrrGVUX4oUM3VctSX7DybSzRN4f")
	v.SetDefault("simulate", true)
	v.SetDefault("ledger-path", "./data/ledger")
	v.SetDefault("log-level", "info")
	v.SetDefault("cache-size", 1024)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("bondswap")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return Config{
		RPCURL:               v.GetString("rpc"),
		WSURL:                v.GetString("ws"),
		PrivateKey:           v.GetString("private-key"),
		ProgramID:            v.GetString("program-id"),
		ProviderFeeCollector: v.GetString("provider-fee-collector"),
		Simulate:             v.GetBool("simulate"),
		LedgerPath:           v.GetString("ledger-path"),
		LogLevel:             v.GetString("log-level"),
		CacheSize:            v.GetInt("cache-size"),
	}, nil
}

// LoadEnv exports the variables of the nearest .env file, searching the
// working directory and up to two parents. Existing environment variables
// are not overwritten.
func LoadEnv() error {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	path := findDotEnv(cwd, 3)
	if path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

func findDotEnv(dir string, levels int) string {
	for i := 0; i < levels; i++ {
		path := filepath.Join(dir, ".env")
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
