// Package main is the entry point of the cvctl command line client.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"vitaeforge/internal/client"
	"vitaeforge/internal/session"
)

const defaultAddr = "http://localhost:8080"

var (
	serverAddr string
	configDir  string
	output     string
)

var errNotSignedIn = errors.New("not signed in: run cvctl login first")

var rootCmd = &cobra.Command{
	Use:           "cvctl",
	Short:         "Create and edit CVs on a VitaeForge server",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Run executes the CLI.
func Run() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return 1
	}
	return 0
}

func init() {
	addr := os.Getenv("VITAEFORGE_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", addr, "Address of the VitaeForge API")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory of the credentials file (default $HOME/.vitaeforge)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format: empty for tables, or json")
}

// env is the auth state and API client shared by one command run.
type env struct {
	backend  *client.AuthBackend
	provider *session.Provider
}

func (e *env) api() *client.Client {
	return e.backend.API
}

func (e *env) close() {
	e.provider.Close()
}

func newEnv(ctx context.Context) *env {
	store := client.DefaultConfigStore()
	if configDir != "" {
		store = client.ConfigStore{Dir: configDir}
	}
	backend := client.NewAuthBackend(serverAddr, store)
	provider := session.NewProvider(backend)
	provider.Start(ctx)
	return &env{backend: backend, provider: provider}
}

// signedIn resolves the stored session and fails when nobody is signed in.
func signedIn(ctx context.Context) (*env, *session.User, error) {
	e := newEnv(ctx)
	st, err := e.provider.Resolved(ctx)
	if err != nil {
		e.close()
		return nil, nil, err
	}
	if st.Err != nil {
		e.close()
		return nil, nil, st.Err
	}
	if st.User == nil {
		e.close()
		return nil, nil, errNotSignedIn
	}
	return e, st.User, nil
}
