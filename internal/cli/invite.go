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
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
)

// claimFlags are the flags shared by the invite and share commands.
type claimFlags struct {
	by      string
	baseURL string
}

func (f *claimFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.by, "by", "", "username recorded as the creator (default: none)")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "origin for printed links (default: first webauthn.rp_origins entry)")
}

// withApp loads the configuration and opens the store for the duration
// of fn.
func withApp(cmd *cobra.Command, opts *Options, fn func(ctx context.Context, a *app) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	log := logger.NewSlogAdapter(cfg.LoggerConfig())
	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(cmd.Context(), a)
}

func (a *app) printer(opts *Options, cmd *cobra.Command, baseURL string) *Printer {
	if baseURL == "" && len(a.cfg.WebAuthn.RPOrigins) > 0 {
		baseURL = a.cfg.WebAuthn.RPOrigins[0]
	}
	return NewPrinter(opts.OutputFormat, cmd.OutOrStdout(), baseURL)
}

// creator resolves --by. An empty username means no creator.
func (a *app) creator(ctx context.Context, username string) (*identity.User, error) {
	if username == "" {
		return nil, nil
	}
	u, err := a.identities.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, fmt.Errorf("no user named %q", username)
		}
		return nil, err
	}
	return u, nil
}

func newInviteCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create and list invites",
	}
	cmd.AddCommand(newInviteCreateCmd(opts), newListCmd(opts, claimable.KindInvite))
	return cmd
}

func newInviteCreateCmd(opts *Options) *cobra.Command {
	var (
		flags claimFlags
		admin bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an invite and print its link",
		Long: `Create an invite and print its link. The first administrator is
bootstrapped this way:

  passkeyshare invite create --admin --config /etc/passkeyshare.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.requirePersistent(); err != nil {
					return err
				}
				by, err := a.creator(ctx, flags.by)
				if err != nil {
					return err
				}
				src, err := a.authorizer.CreateInvite(ctx, by, admin)
				if err != nil {
					return err
				}
				return a.printer(opts, cmd, flags.baseURL).PrintClaimable(src)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&admin, "admin", false, "the account created from this invite is an administrator")
	return cmd
}

func newListCmd(opts *Options, kind claimable.Kind) *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %ss", claimable.Noun(kind)),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				srcs, err := a.authorizer.List(ctx, kind)
				if err != nil {
					return err
				}
				return a.printer(opts, cmd, baseURL).PrintClaimables(srcs)
			})
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "origin for printed links")
	return cmd
}

