package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/logs2metrics/l2m/pkg/client"
)

var (
	cfgFile      string
	outputFormat string
	serverURL    string
	timeout      time.Duration
	apiClient    *client.Client
)

// NewRootCmd builds the l2mctl command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "l2mctl",
		Short: "l2mctl - manage log-to-metric rules",
		Long: `l2mctl talks to the logs-to-metrics API to create and manage rules that
turn log queries into pre-aggregated metrics, estimate their cost, and inspect
the backing Elasticsearch transforms.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initConfig()
			// config and token work offline
			for c := cmd; c != nil; c = c.Parent() {
				if c.Name() == "config" || c.Name() == "token" {
					return nil
				}
			}
			return initClient()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.l2m/config.yaml)")
	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides config)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(newRulesCmd())
	root.AddCommand(newEngineCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newMonitorCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newTokenCmd())

	return root
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".l2m"), nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("L2M")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server_url", "http://localhost:8000")
	viper.SetDefault("output", "table")

	_ = viper.ReadInConfig()
}

func initClient() error {
	url := viper.GetString("server_url")
	if serverURL != "" {
		url = serverURL
	}

	apiClient = client.NewClient(client.Config{
		BaseURL: url,
		Timeout: timeout,
		// auth is optional on the server side
		Token: viper.GetString("auth.token"),
	})
	return nil
}

func getOutputFormat() string {
	if outputFormat != "" {
		return outputFormat
	}
	return viper.GetString("output")
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}
