package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"vitaeforge/internal/client"
)

var (
	email    string
	password string
)

func credentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (default $VITAEFORGE_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
}

func passwordValue() (string, error) {
	if password != "" {
		return password, nil
	}
	if p := os.Getenv("VITAEFORGE_PASSWORD"); p != "" {
		return p, nil
	}
	return "", errors.New("password is required")
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordValue()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e := newEnv(ctx)
			defer e.close()

			if err := e.provider.SignInWithPassword(ctx, email, pw); err != nil {
				return err
			}
			if u := e.provider.State().User; u != nil {
				cmd.Printf("Signed in as %s\n", u.Email)
			}
			return nil
		},
	}
	credentialFlags(cmd)
	return cmd
}

func newSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordValue()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e := newEnv(ctx)
			defer e.close()

			err = e.provider.SignUp(ctx, email, pw)
			if errors.Is(err, client.ErrConfirmationRequired) {
				cmd.Printf("Check %s to confirm the account, then run cvctl login\n", email)
				return nil
			}
			if err != nil {
				return err
			}
			cmd.Printf("Account created, signed in as %s\n", email)
			return nil
		},
	}
	credentialFlags(cmd)
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e := newEnv(ctx)
			defer e.close()
			if err := e.provider.SignOut(ctx); err != nil {
				return err
			}
			cmd.Println("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, u, err := signedIn(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			if output == "json" {
				return printJSON(cmd, u)
			}
			name := u.DisplayName
			if name == "" {
				name = "-"
			}
			cmd.Printf("%s\t%s\t%s\n", u.UID, u.Email, name)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newLoginCmd(), newSignupCmd(), newLogoutCmd(), newWhoamiCmd())
}
