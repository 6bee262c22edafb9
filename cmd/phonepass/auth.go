// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonepass Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/phonepass/phonepass/internal/auth"
)

// NewSendCodeCmd creates the send-code subcommand.
func NewSendCodeCmd() *cobra.Command {
	var phone string

	cmd := &cobra.Command{
		Use:   "send-code",
		Short: "Issue a verification code for a phone number",
		Long: `Issue a one-time verification code for a phone number. The code is
delivered through the log notifier.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, nil, func(ctx context.Context, svc *auth.Service) error {
				res, err := svc.SendCode(ctx, phone)
				if err != nil {
					return err
				}
				printSendCode(cmd.OutOrStdout(), res)
				return rejection(auth.OpSendCode, res.Outcome)
			})
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "phone number (11 digits)")
	_ = cmd.MarkFlagRequired("phone") //nolint:errcheck // flag defined above

	return cmd
}

// NewLoginCmd creates the login subcommand.
func NewLoginCmd() *cobra.Command {
	var (
		phone    string
		code     string
		account  string
		password string
		captcha  string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a verification code or a password",
		Long: `Log in with --phone and --code, or with --account and --password.
After repeated password failures a --captcha proof is required.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, nil, func(ctx context.Context, svc *auth.Service) error {
				var (
					res       auth.LoginResult
					err       error
					operation string
				)
				if cmd.Flags().Changed("code") {
					operation = auth.OpCodeLogin
					res, err = svc.CodeLogin(ctx, phone, code)
				} else {
					operation = auth.OpPasswordLogin
					res, err = svc.PasswordLogin(ctx, account, password, captcha)
				}
				if err != nil {
					return err
				}
				printLogin(cmd.OutOrStdout(), res)
				return rejection(operation, res.Outcome)
			})
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "phone number for code login")
	cmd.Flags().StringVar(&code, "code", "", "verification code")
	cmd.Flags().StringVar(&account, "account", "", "account (phone number) for password login")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&captcha, "captcha", "", "CAPTCHA proof")
	cmd.MarkFlagsMutuallyExclusive("code", "password")
	cmd.MarkFlagsOneRequired("code", "password")
	cmd.MarkFlagsRequiredTogether("phone", "code")
	cmd.MarkFlagsRequiredTogether("account", "password")

	return cmd
}

// NewRegisterCmd creates the register subcommand.
func NewRegisterCmd() *cobra.Command {
	var req auth.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a phone number with a password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, nil, func(ctx context.Context, svc *auth.Service) error {
				res, err := svc.Register(ctx, req)
				if err != nil {
					return err
				}
				printLogin(cmd.OutOrStdout(), res)
				return rejection(auth.OpRegister, res.Outcome)
			})
		},
	}

	cmd.Flags().StringVar(&req.PhoneNumber, "phone", "", "phone number (11 digits)")
	cmd.Flags().StringVar(&req.Code, "code", "", "verification code")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	cmd.Flags().StringVar(&req.ConfirmPassword, "confirm", "", "password confirmation")
	cmd.Flags().BoolVar(&req.AgreeTerms, "agree-terms", false, "accept the terms of service")

	return cmd
}

// withService loads configuration, opens the stores and runs fn against a
// fresh orchestrator.
func withService(cmd *cobra.Command, deps *StoreDeps, fn func(context.Context, *auth.Service) error) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := openBackend(ctx, cfg, logger, deps)
	if err != nil {
		return err
	}
	defer b.Close()

	svc, err := newService(cfg, b, logger)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

// rejection turns a failed outcome into a command error so the process
// exits non-zero. Outcomes carrying a session, OutcomeOK included, succeed.
func rejection(operation string, outcome auth.Outcome) error {
	if outcome.HasSession() {
		return nil
	}
	return oops.Code("AUTH_REJECTED").
		With("operation", operation).
		With("outcome", outcome.String()).
		Errorf("%s: %s", operation, outcome)
}

func printSendCode(w io.Writer, res auth.SendCodeResult) {
	fmt.Fprintf(w, "outcome: %s\n", res.Outcome)
	switch res.Outcome {
	case auth.OutcomeOK:
		fmt.Fprintf(w, "expires_at: %s\n", res.ExpiresAt.Format(time.RFC3339))
	case auth.OutcomeRateLimited:
		fmt.Fprintf(w, "retry_after: %s\n", res.RetryAfter.Round(time.Second))
	case auth.OutcomeInvalidInput:
		fmt.Fprintf(w, "reason: %s\n", res.Reason)
	}
}

func printLogin(w io.Writer, res auth.LoginResult) {
	fmt.Fprintf(w, "outcome: %s\n", res.Outcome)
	if res.Reason != "" {
		fmt.Fprintf(w, "reason: %s\n", res.Reason)
	}
	if res.User != nil {
		fmt.Fprintf(w, "user_id: %s\n", res.User.ID)
		fmt.Fprintf(w, "new_user: %t\n", res.NewUser)
	}
	if res.Session != nil {
		fmt.Fprintf(w, "token: %s\n", res.Session.Token)
		fmt.Fprintf(w, "expires_at: %s\n", res.Session.ExpiresAt.Format(time.RFC3339))
	}
	if res.Failures > 0 {
		fmt.Fprintf(w, "failures: %d\n", res.Failures)
	}
	if res.LockedUntil != nil {
		fmt.Fprintf(w, "locked_until: %s\n", res.LockedUntil.Format(time.RFC3339))
	}
}
