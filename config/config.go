// Package config loads the core configuration from a file, the environment
// and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/vitwit/walletsession/types"
	"github.com/vitwit/walletsession/utils"
)

// EnvPrefix is prepended to every environment override, e.g.
// WALLETSESSION_TARGET_NETWORK_CHAIN_ID.
const EnvPrefix = "WALLETSESSION"

// Load reads the configuration. An empty path searches for walletsession.yaml
// in the working directory and ./config; a missing file is not an error when
// no explicit path was given.
func Load(path string) (*types.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("walletsession")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, &types.WalletError{
				Code:    types.ErrConfigError,
				Message: fmt.Sprintf("failed to read config: %v", err),
			}
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &types.WalletError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("unable to decode config: %v", err),
		}
	}

	if err := utils.ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("wallet_name", "metamask")
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("enable_metrics", false)
	v.SetDefault("auto_approve", false)

	// Sepolia
	v.SetDefault("target_network.chain_id", "0xaa36a7")
	v.SetDefault("target_network.chain_name", "Sepolia")
	v.SetDefault("target_network.native_currency.name", "Sepolia Ether")
	v.SetDefault("target_network.native_currency.symbol", "ETH")
	v.SetDefault("target_network.native_currency.decimals", 18)
	v.SetDefault("target_network.rpc_urls", []string{"https://rpc.sepolia.org"})
	v.SetDefault("target_network.block_explorer_urls", []string{"https://sepolia.etherscan.io"})

	// bound so AutomaticEnv picks it up without a config file entry
	v.SetDefault("signer_key", "")
}
