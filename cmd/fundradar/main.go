package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fundradar",
		Short: "Score and rank mutual funds from periodic return data",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(seedCmd())
	root.AddCommand(updateCmd())
	root.AddCommand(flushCmd())
	root.AddCommand(pingCmd())
	root.AddCommand(scoresCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Discover the fund universe, screen it, and run a full scoring pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed()
		},
	}
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh returns and category averages, then rescore everything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate()
		},
	}
}

func flushCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Clear computed scores (or with --all, every stored record)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlush(all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "also delete funds, averages, announcements, and run history")
	return cmd
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check store and provider connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing()
		},
	}
}

func scoresCmd() *cobra.Command {
	var (
		jsonOutput bool
		group      string
		minScore   float64
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show current fund scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScores(jsonOutput, group, minScore, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&group, "group", "", "only show one peer group")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum final score")
	cmd.Flags().IntVar(&limit, "limit", 20, "max funds to show")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
