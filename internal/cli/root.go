// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeyshare.
//
// go-passkeyshare is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkeyshare/internal/config"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigFile   string
	OutputFormat string
}

// NewRootCmd builds the passkeyshare command tree.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "passkeyshare",
		Short: "Passkey-only file sharing server",
		Long: `passkeyshare serves invite-only sign-up and one-time file shares behind
WebAuthn passkeys. There are no passwords: accounts are created by claiming
an invite and signing in uses a registered passkey.

Configuration is read from a YAML file and PASSKEYSHARE_* environment
variables, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.ConfigFile, "config", os.Getenv(config.EnvPrefix+"CONFIG"),
		"config file (env "+config.EnvPrefix+"CONFIG)")
	root.PersistentFlags().StringVarP(&opts.OutputFormat, "output", "o", string(OutputFormatText),
		"output format (text, json)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newInviteCmd(opts))
	root.AddCommand(newShareCmd(opts))
	root.AddCommand(newVersionCmd(opts))
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *Options) load() (*config.Config, error) {
	return config.Load(o.ConfigFile)
}
