package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mikeboe/osint-helper/pkg/research"
	"github.com/mikeboe/osint-helper/pkg/research/tools"
)

func lookupCmd() *cobra.Command {
	var name, question string
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Collect public information about a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prompt(cmd, "name", "Enter full name", &name, true); err != nil {
				return err
			}
			cfg, err := setup()
			if err != nil {
				return err
			}
			engine, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			slog.Info("Starting lookup", "name", name)
			res := engine.Lookup(cmd.Context(), name, question, research.RunOptions{})
			return printLookup(cmd, res)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "full name of the person")
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to answer about the person")
	return cmd
}

func researchCmd() *cobra.Command {
	var (
		query, question string
		rounds          int
	)
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Search a topic, follow up on what is found and answer a question",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prompt(cmd, "query", "Enter search query", &query, true); err != nil {
				return err
			}
			if err := prompt(cmd, "question", "Enter question (default: the query)", &question, false); err != nil {
				return err
			}
			if question == "" {
				question = query
			}
			cfg, err := setup()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("rounds") {
				rounds = cfg.Research.Rounds
			}
			if rounds < 0 {
				return fmt.Errorf("--rounds must not be negative")
			}
			engine, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			slog.Info("Starting research", "query", query, "rounds", rounds)
			res := engine.Research(cmd.Context(), query, question, rounds, research.RunOptions{})
			return printLookup(cmd, res)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "s", "", "seed search query")
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to answer")
	cmd.Flags().IntVarP(&rounds, "rounds", "r", 0, "deep dive rounds (default from config)")
	return cmd
}

func investigateCmd() *cobra.Command {
	var (
		objective string
		subject   research.Subject
		maxCycles int
	)
	cmd := &cobra.Command{
		Use:   "investigate",
		Short: "Run the plan-execute-review-adjust loop against a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prompt(cmd, "name", "Enter subject name", &subject.Name, true); err != nil {
				return err
			}
			if objective == "" {
				objective = "Verify identity of " + subject.Name
			}
			cfg, err := setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-cycles") {
				if maxCycles <= 0 {
					return fmt.Errorf("--max-cycles must be positive")
				}
				cfg.Research.MaxCycles = maxCycles
			}
			engine, err := newEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			slog.Info("Starting investigation", "objective", objective, "subject", subject.Name)
			report := engine.Investigate(cmd.Context(), objective, subject, research.RunOptions{})
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", research.ReportMarkdown(report))

			if outputPath == "" {
				return nil
			}
			if err := research.SaveReport(outputPath, outputFormat(), report); err != nil {
				return err
			}
			slog.Info("Report saved", "path", outputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&objective, "objective", "", "what the investigation should establish")
	cmd.Flags().StringVarP(&subject.Name, "name", "n", "", "subject name")
	cmd.Flags().StringVarP(&subject.Username, "username", "u", "", "subject username")
	cmd.Flags().StringVarP(&subject.Email, "email", "e", "", "subject email")
	cmd.Flags().StringVarP(&subject.Location, "location", "l", "", "subject location")
	cmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "maximum PERA cycles (default from config)")
	return cmd
}

func usernameCmd() *cobra.Command {
	var (
		username string
		sites    []string
	)
	cmd := &cobra.Command{
		Use:   "username",
		Short: "Check which profile sites have a page for a username",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := prompt(cmd, "username", "Enter username", &username, true); err != nil {
				return err
			}
			cfg, err := setup()
			if err != nil {
				return err
			}
			checker := tools.NewUsernameChecker(cfg.Scrape.UserAgent, cfg.Scrape.Timeout, cfg.Research.Concurrency)
			checker.Logger = slog.Default()
			hits := checker.Check(cmd.Context(), username, sites)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "URL\tSTATUS")
			for _, h := range hits {
				fmt.Fprintf(w, "%s\t%s\n", h.URL, h.Status)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username to look for")
	cmd.Flags().StringSliceVar(&sites, "site", nil, "profile URL template containing {username} (repeatable)")
	return cmd
}
