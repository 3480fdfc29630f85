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

	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
)

func newShareCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Create and list file shares",
	}
	cmd.AddCommand(newShareCreateCmd(opts), newListCmd(opts, claimable.KindShare))
	return cmd
}

func newShareCreateCmd(opts *Options) *cobra.Command {
	var (
		flags   claimFlags
		ref     string
		to      string
		expires string
	)
	cmd := &cobra.Command{
		Use:   "create --file REF",
		Short: "Share a file and print the link",
		Long: `Share a file from the configured provider and print the link.

  passkeyshare share create --file reports/q3.pdf --to bob --expires 2d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expiry, err := claimable.ParseExpiry(expires)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.requirePersistent(); err != nil {
					return err
				}
				details, err := a.shareDetails(ctx, ref)
				if err != nil {
					return err
				}
				details.ToUsername = to
				details.ExpiresAfter = expiry

				by, err := a.creator(ctx, flags.by)
				if err != nil {
					return err
				}
				src, err := a.authorizer.CreateShare(ctx, by, details)
				if err != nil {
					return err
				}
				return a.printer(opts, cmd, flags.baseURL).PrintClaimable(src)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&ref, "file", "", "file reference relative to the provider root")
	cmd.Flags().StringVar(&to, "to", "", "only this username may claim the share")
	cmd.Flags().StringVar(&expires, "expires", "", `lifetime such as "2d" or "36h" (default: never)`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// shareDetails caches the file's title, type and formats.
func (a *app) shareDetails(ctx context.Context, ref string) (claimable.ShareDetails, error) {
	if a.files == nil {
		return claimable.ShareDetails{}, errors.New("no files provider configured")
	}
	info, err := a.files.Stat(ctx, ref)
	if err != nil {
		return claimable.ShareDetails{}, fmt.Errorf("stat %s: %w", ref, err)
	}
	return claimable.ShareDetails{
		FileRef:          info.Ref,
		FileTitle:        info.Title,
		FileType:         info.ContentType,
		AvailableFormats: info.Formats,
	}, nil
}
