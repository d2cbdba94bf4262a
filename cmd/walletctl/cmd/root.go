package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vitwit/walletsession"
	"github.com/vitwit/walletsession/clients"
	"github.com/vitwit/walletsession/config"
	"github.com/vitwit/walletsession/logger"
	"github.com/vitwit/walletsession/metrics"
	"github.com/vitwit/walletsession/types"
	"github.com/vitwit/walletsession/utils"
)

var (
	configPath  string
	startChain  string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "walletctl",
	Short: "Drive a wallet session from the terminal",
	Long: `walletctl connects a local signing key to an Ethereum JSON-RPC node as if
it were a browser wallet, then runs the wallet session core against it:
connecting, checking the network, switching networks and sending transfers.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./walletsession.yaml)")
	rootCmd.PersistentFlags().StringVar(&startChain, "start-chain", "", "chain id the wallet starts on (default: target network)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

// runtime is everything a subcommand needs
type runtime struct {
	core   *walletsession.Core
	wallet *clients.RPCWallet
	log    logger.Logger
	out    io.Writer
}

func (r *runtime) Close() {
	r.core.Close()
	r.wallet.Close()
	if z, ok := r.log.(*logger.ZapLogger); ok {
		_ = z.Sync()
	}
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.SignerKey == "" {
		return nil, errors.New("signer key is required (set signer_key or WALLETSESSION_SIGNER_KEY)")
	}

	key, err := utils.PrivateKeyFromHex(cfg.SignerKey)
	if err != nil {
		return nil, err
	}

	log := logger.NewZapLogger(cfg.LogLevel)
	out := cmd.OutOrStdout()

	initial, err := startNetwork(cfg)
	if err != nil {
		return nil, err
	}

	var approver clients.Approver = clients.AutoApprover{}
	if !cfg.AutoApprove {
		approver = &promptApprover{in: cmd.InOrStdin(), out: out}
	}

	wallet, err := clients.NewRPCWallet(key, initial,
		clients.WithName(cfg.WalletName),
		clients.WithApprover(approver),
		clients.WithAuthorized(cfg.AutoApprove),
		clients.WithNetworks(cfg.Networks...),
		clients.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	opts := []walletsession.Option{
		walletsession.WithLogger(log),
		walletsession.WithNotifier(&consoleNotifier{out: out}),
	}
	if cfg.EnableMetrics || metricsAddr != "" {
		opts = append(opts, walletsession.WithMetrics(metrics.NewPrometheusRecorder(nil)))
	}
	if metricsAddr != "" {
		go serveMetrics(metricsAddr, log)
	}

	core, err := walletsession.New(wallet, cfg, opts...)
	if err != nil {
		wallet.Close()
		return nil, err
	}

	return &runtime{core: core, wallet: wallet, log: log, out: out}, nil
}

// startNetwork picks the wallet's initial chain among the target and known
// networks.
func startNetwork(cfg *types.Config) (types.ChainConfig, error) {
	if startChain == "" || utils.SameChain(startChain, cfg.TargetNetwork.ChainID) {
		return cfg.TargetNetwork, nil
	}
	for _, n := range cfg.Networks {
		if utils.SameChain(startChain, n.ChainID) {
			return n, nil
		}
	}
	return types.ChainConfig{}, &types.WalletError{
		Code:    types.ErrUnsupportedNetwork,
		Message: fmt.Sprintf("chain %s is not configured", startChain),
	}
}

func serveMetrics(addr string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", map[string]any{"addr": addr, "error": err})
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
