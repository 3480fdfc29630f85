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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format  OutputFormat
	writer  io.Writer
	baseURL string
}

// NewPrinter creates a new Printer. Links are rendered against baseURL
// when it is set.
func NewPrinter(format string, writer io.Writer, baseURL string) *Printer {
	return &Printer{
		format:  OutputFormat(format),
		writer:  writer,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type claimableOutput struct {
	Kind       claimable.Kind `json:"kind"`
	ID         string         `json:"id"`
	Link       string         `json:"link"`
	IsAdmin    bool           `json:"isAdmin,omitempty"`
	Created    time.Time      `json:"created"`
	CreatedBy  string         `json:"createdBy,omitempty"`
	ClaimedBy  string         `json:"claimedBy,omitempty"`
	FileRef    string         `json:"fileRef,omitempty"`
	ToUsername string         `json:"toUsername,omitempty"`
	ExpiresAt  *time.Time     `json:"expiresAt,omitempty"`
}

func (p *Printer) output(src *claimable.Source) claimableOutput {
	out := claimableOutput{
		Kind:    src.Kind,
		ID:      src.ID,
		Link:    p.baseURL + src.Path(),
		IsAdmin: src.IsAdmin,
		Created: src.Created,
	}
	if src.CreatedBy != nil {
		out.CreatedBy = src.CreatedBy.Username
	}
	if src.ClaimedBy != nil {
		out.ClaimedBy = src.ClaimedBy.Username
	}
	if src.Share != nil {
		out.FileRef = src.Share.FileRef
		out.ToUsername = src.Share.ToUsername
	}
	if at, ok := src.ExpiresAt(); ok {
		out.ExpiresAt = &at
	}
	return out
}

// PrintClaimable prints a newly created invite or share. The text form is
// just the link so that it can be piped.
func (p *Printer) PrintClaimable(src *claimable.Source) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(p.output(src))
	case OutputFormatText:
		_, err := fmt.Fprintln(p.writer, p.baseURL+src.Path())
		return err
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintClaimables prints a list of invites or shares
func (p *Printer) PrintClaimables(srcs []*claimable.Source) error {
	switch p.format {
	case OutputFormatJSON:
		items := make([]claimableOutput, 0, len(srcs))
		for _, src := range srcs {
			items = append(items, p.output(src))
		}
		return p.printJSON(map[string]any{"items": items})
	case OutputFormatText:
		if len(srcs) == 0 {
			_, err := fmt.Fprintln(p.writer, "Nothing found")
			return err
		}
		fmt.Fprintf(p.writer, "%-36s %-20s %-12s %s\n", "ID", "CREATED", "CLAIMED BY", "LINK")
		fmt.Fprintln(p.writer, strings.Repeat("-", 100))
		for _, src := range srcs {
			o := p.output(src)
			claimedBy := o.ClaimedBy
			if claimedBy == "" {
				claimedBy = "-"
			}
			fmt.Fprintf(p.writer, "%-36s %-20s %-12s %s\n", o.ID, o.Created.Format("2006-01-02 15:04"), claimedBy, o.Link)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printJSON(data any) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
