package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikeboe/osint-helper/pkg/config"
	"github.com/mikeboe/osint-helper/pkg/metrics"
	"github.com/mikeboe/osint-helper/pkg/research"
)

var (
	configPath string
	outputPath string
	format     string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "osint-helper",
		Short: "A terminal-based OSINT research agent",
		Long: `osint-helper collects public information about a person or topic by searching the web,
summarizing the pages it finds and following up on the most promising leads.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "save the result to this file")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "", "output format: txt, md, json or csv (default from the file extension)")

	rootCmd.AddCommand(lookupCmd(), researchCmd(), investigateCmd(), usernameCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the default logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}

func newEngine(ctx context.Context, cfg *config.Config) (*research.ResearchEngine, error) {
	return research.NewEngine(ctx, cfg, research.BuildOptions{
		Metrics: metrics.New(),
		Logger:  slog.Default(),
	})
}

// prompt reads a line from stdin when the flag was not set.
func prompt(cmd *cobra.Command, flag, label string, value *string, required bool) error {
	if cmd.Flags().Changed(flag) {
		if required && strings.TrimSpace(*value) == "" {
			return fmt.Errorf("--%s flag provided but empty", flag)
		}
		return nil
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ", label)
	input, _ := reader.ReadString('\n')
	if input = strings.TrimSpace(input); input != "" {
		*value = input
	}
	if required && strings.TrimSpace(*value) == "" {
		return fmt.Errorf("%s cannot be empty", strings.ToLower(label))
	}
	return nil
}

func outputFormat() string {
	if format != "" {
		return strings.ToLower(format)
	}
	return research.FormatFromPath(outputPath)
}

func printLookup(cmd *cobra.Command, res research.LookupResult) error {
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", res.Answer)
	if outputPath == "" {
		return nil
	}
	if err := research.SaveLookup(outputPath, outputFormat(), res); err != nil {
		return err
	}
	slog.Info("Result saved", "path", outputPath)
	return nil
}
