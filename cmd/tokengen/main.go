// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Command tokengen mints bearer tokens signed with the server's JWT secret.
// It reads the same configuration as the server (JWT_SECRET, TOKEN_TTL,
// JWT_ISSUER and config.yaml).
//
//	tokengen --user alice
//	tokengen --user alice --role viewer --ttl 1h --json
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/config"
	"github.com/tomtom215/inkwell/internal/validation"
)

// Exit codes
const (
	exitSuccess = 0
	exitError   = 1
)

// tokenOutput is printed with --json.
type tokenOutput struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type tokenFlags struct {
	user    string
	role    string
	ttl     time.Duration
	asJSON  bool
	project string
}

func main() {
	if err := newRootCmd(os.Stdout, config.Load).Execute(); err != nil {
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

func newRootCmd(out io.Writer, loadConfig func() (*config.Config, error)) *cobra.Command {
	var flags tokenFlags

	cmd := &cobra.Command{
		Use:   "tokengen",
		Short: "Mint an Inkwell bearer token",
		Long: `Mint an HS256 bearer token for the Inkwell server.

The token is signed with the configured JWT secret. Its username grants
access to every project owned by that user.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return runTokengen(out, cfg, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.user, "user", "u", "", "username the token is issued to (required)")
	cmd.Flags().StringVarP(&flags.role, "role", "r", "editor", "role claim")
	cmd.Flags().DurationVar(&flags.ttl, "ttl", 0, "token lifetime (default: configured TOKEN_TTL)")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print token details as JSON")
	cmd.Flags().StringVar(&flags.project, "project", "", "print the documentId prefix for this project slug")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// usernameCheck reuses the slug rule project owners are validated with.
type usernameCheck struct {
	User string `json:"user" validate:"required,slug"`
}

func runTokengen(out io.Writer, cfg *config.Config, flags tokenFlags) error {
	if verr := validation.ValidateStruct(usernameCheck{User: flags.user}); verr != nil {
		return fmt.Errorf("invalid --user: %w", verr)
	}
	if flags.project != "" {
		if verr := validation.ValidateStruct(struct {
			Project string `json:"project" validate:"slug"`
		}{flags.project}); verr != nil {
			return fmt.Errorf("invalid --project: %w", verr)
		}
	}

	m, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return err
	}

	ttl := flags.ttl
	if ttl <= 0 {
		ttl = cfg.Security.TokenTTL
	}
	token, err := m.GenerateTokenWithTTL(flags.user, flags.role, ttl)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	if flags.asJSON {
		data, err := json.MarshalIndent(tokenOutput{
			Token:     token,
			Username:  flags.user,
			Role:      flags.role,
			ExpiresAt: time.Now().Add(ttl).UTC().Truncate(time.Second),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	if _, err := fmt.Fprintln(out, token); err != nil {
		return err
	}
	if flags.project != "" {
		_, err = fmt.Fprintf(out, "documentId prefix: %s:%s:\n", flags.user, flags.project)
	}
	return err
}
