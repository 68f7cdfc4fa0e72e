// Command authcore runs the authentication core as an HTTP service and
// carries its operational helpers.
//
//	authcore serve   --config authcore.yaml
//	authcore migrate --config authcore.yaml
//	authcore keygen  --method hs256
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spintune/authcore"
)

type rootOptions struct {
	configPath string
	envFiles   []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "authcore",
		Short:         "Authentication and MFA session core",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFiles(opts.envFiles)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("AUTHCORE_CONFIG"), "YAML config file (env AUTHCORE_CONFIG)")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config; missing files are skipped")

	root.AddCommand(newServeCmd(opts), newMigrateCmd(opts), newKeygenCmd())
	return root
}

// loadEnvFiles loads each dotenv file in order. Variables already set in the
// process environment win.
func loadEnvFiles(paths []string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func (o *rootOptions) loadConfig() (authcore.Config, error) {
	return authcore.LoadConfig(o.configPath)
}
