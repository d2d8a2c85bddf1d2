package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/waveportal/waveledger/pkg/client"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var serverURL string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wavectl",
	Short: "waveledger CLI",
	Long: `wavectl is the command-line interface for a waveledger server.

It submits waves, queries the ledger history, and follows the live
event stream.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetEnvPrefix("wavectl")
		viper.AutomaticEnv()

		if serverURL == "" {
			serverURL = viper.GetString("server")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Append a wave to the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sender, _ := cmd.Flags().GetString("sender")

		c := client.New(serverURL)
		w, err := c.SendWave(cmd.Context(), sender, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("wave appended at index %d\n", w.Index)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the full wave history in append order",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		waves, err := c.Waves(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tSENDER\tTIME\tMESSAGE")
		for _, w := range waves {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
				w.Index, w.Sender,
				time.Unix(w.Timestamp, 0).Format(time.RFC3339),
				w.Message,
			)
		}
		return tw.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get <index>",
	Short: "Print a single wave by index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be an integer: %w", err)
		}

		c := client.New(serverURL)
		w, err := c.Wave(cmd.Context(), idx)
		if err != nil {
			return err
		}

		fmt.Printf("index:     %d\n", w.Index)
		fmt.Printf("sender:    %s\n", w.Sender)
		fmt.Printf("timestamp: %s\n", time.Unix(w.Timestamp, 0).Format(time.RFC3339))
		fmt.Printf("message:   %s\n", w.Message)
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the total number of waves",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		n, err := c.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live wave stream until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		c := client.New(serverURL)
		events, err := c.Watch(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr, "watching for waves (ctrl-c to stop)...")
		for w := range events {
			fmt.Printf("[%d] %s  %s: %s\n",
				w.Index,
				time.Unix(w.Timestamp, 0).Format(time.RFC3339),
				w.Sender, w.Message,
			)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the wavectl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "waveledger server URL (env: WAVECTL_SERVER)")
	sendCmd.Flags().String("sender", "", "identity token recorded as the wave sender")
	_ = sendCmd.MarkFlagRequired("sender")

	rootCmd.AddCommand(sendCmd, listCmd, getCmd, countCmd, watchCmd, versionCmd)
}
