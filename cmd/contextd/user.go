// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/contextd-dev/contextd/internal/config"
	"github.com/contextd-dev/contextd/internal/store"
	cerr "github.com/contextd-dev/contextd/pkg/errors"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage gateway users",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create or update a user",
		Long:  "Create or update a user in the credential store. The password is read from the --password flag or prompted on the terminal. This is how the first admin is provisioned before the API is usable.",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserAdd,
	}

	cmd.Flags().String("password", "", "password (prompted if omitted)")
	cmd.Flags().String("role", store.RoleUser, "role: user or admin")

	return cmd
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}
	username := args[0]
	role, _ := cmd.Flags().GetString("role")

	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Password for %s: ", username)
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return cerr.Wrap(err, cerr.CodeCLIInputInvalid, "reading password")
		}
		password = string(raw)
	}

	logger := newLogger(viper.GetBool("verbose"))
	gw, err := WireGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	if err := gw.Auth.UpsertUser(cmd.Context(), username, password, role); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "user %q provisioned with role %q\n", username, role)
	return nil
}
