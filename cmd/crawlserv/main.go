// Command crawlserv runs the crawlserv server: it opens storage, resumes
// any threads that were running or interrupted when the process last
// stopped, and serves the control surface (C7) until SIGINT. Grounded on
// the teacher's cmd/cmd.go builder/Execute() idiom (github.com/spf13/cobra,
// a config path flag, a blocking signal.Notify(syscall.SIGINT) shutdown),
// generalized from one walkerCommand per walker subsystem to a single
// "serve" command standing up every crawlserv module together.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/logging"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "crawlserv",
		Short: "crawlserv runs the crawler/parser/extractor/analyzer control server",
		RunE:  runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "crawlserv.yaml", "path to the YAML configuration file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := crawlserv.ReadConfigFile(configPath); err != nil {
				return err
			}
		}
	}

	backend, err := buildStore(crawlserv.Config)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer backend.Close()

	if err := backend.CreateSchema(context.Background()); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	supervisor, err := buildSupervisor(backend, crawlserv.Config)
	if err != nil {
		return fmt.Errorf("configuring supervisor: %w", err)
	}

	client, err := buildNetworkClient(crawlserv.Config)
	if err != nil {
		return fmt.Errorf("configuring network client: %w", err)
	}

	launcher := newModuleLauncher(backend, client)

	if err := resumeThreads(context.Background(), backend, supervisor, launcher); err != nil {
		logging.Error("resuming persisted threads: %v", err)
	}

	server := buildControlServer(backend, supervisor, launcher, crawlserv.Config)

	httpServer := &http.Server{
		Addr:    crawlserv.Config.Control.ListenAddr,
		Handler: server.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Info("control surface listening on %v", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		logging.Info("received shutdown signal, stopping")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("control surface: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Error("http shutdown: %v", err)
	}
	return nil
}
