package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"FreightTracker/internal/app"
	"FreightTracker/internal/carrier"
	"FreightTracker/internal/config"
	"FreightTracker/internal/domain"
	"FreightTracker/internal/logging"
	"FreightTracker/internal/milestone"
	"FreightTracker/internal/usecase"
)

var rootCmd = &cobra.Command{
	Use:   "freighttracker",
	Short: "Ocean freight milestone tracker",
	Long: `FreightTracker asks every configured carrier source for a tracking number, stops at the first
one that knows it, and resolves the carrier's raw events into one canonical record:
departure, arrival and transshipment dates, each as actual or estimated.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FREIGHT_TRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the YAML configuration")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(trackCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(carriersCmd())
}

func loadConfig() config.Config {
	cfg := config.Load(viper.GetString("config"))
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg
}

func withApp(fn func(a *app.Application) error) error {
	cfg := loadConfig()
	logger := logging.NewWithFormat(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func trackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track <tracking-number>",
		Short: "Track a shipment across every configured carrier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Application) error {
				res, err := a.Tracker().Track(cmd.Context(), args[0])
				if viper.GetBool("json") {
					if perr := printJSON(res); perr != nil {
						return perr
					}
					return err
				}
				if err != nil {
					if len(res.Attempts) > 0 {
						printAttempts(res.Attempts)
					}
					return err
				}
				fmt.Printf("%s matched by %s\n", res.TrackingNumber, res.Adapter)
				printRecord(res.Record)
				printAttempts(res.Attempts)
				return nil
			})
		},
	}
}

func resolveCmd() *cobra.Command {
	var file, now string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a shipment JSON file into a canonical record without contacting carriers",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(file)
			if err != nil {
				return err
			}
			var shipment domain.Shipment
			if err := json.Unmarshal(raw, &shipment); err != nil {
				return fmt.Errorf("decode shipment: %w", err)
			}

			ref := time.Now()
			if now != "" {
				if ref, err = time.Parse(time.RFC3339, now); err != nil {
					return fmt.Errorf("parse --now: %w", err)
				}
			}

			record := milestone.ResolveShipment(shipment, ref)
			if viper.GetBool("json") {
				return printJSON(record)
			}
			printRecord(record)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "shipment JSON file, - for stdin")
	cmd.Flags().StringVar(&now, "now", "", "reference time (RFC3339), defaults to the current time")
	return cmd
}

func watchCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-track configured numbers on the scheduler interval and publish change digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Application) error {
				ctx := cmd.Context()
				if once {
					changes, err := a.Run(ctx)
					if err != nil {
						return err
					}
					fmt.Print(usecase.BuildDigest(changes))
					return nil
				}

				if err := a.Watcher().Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()

				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return a.Watcher().Stop(stopCtx)
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and print the digest")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tracking HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Application) error {
				if addr == "" {
					addr = a.Config().Server.Addr
				}
				srv := &http.Server{
					Addr:              addr,
					Handler:           a.Handler(),
					ReadHeaderTimeout: 10 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() {
					fmt.Fprintf(os.Stderr, "listening on %s\n", addr)
					errCh <- srv.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-cmd.Context().Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func carriersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "carriers",
		Short: "List configured carrier sources in tracking order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			reg, err := carrier.NewRegistryFromConfig(cfg.Carriers, carrier.Deps{Logger: logging.Discard()})
			if err != nil {
				return err
			}
			byName := make(map[string]config.CarrierConfig, len(cfg.Carriers))
			for _, c := range cfg.Carriers {
				byName[c.Name] = c
			}

			if viper.GetBool("json") {
				return printJSON(cfg.Carriers)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"#", "Name", "Type", "URL", "Timeout", "Timezone"})
			for i, name := range reg.Names() {
				c := byName[name]
				tw.AppendRow(table.Row{i + 1, c.Name, c.Type, c.URL, c.Timeout, c.Timezone})
			}
			tw.Render()
			return nil
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printRecord(record domain.CanonicalRecord) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Field", "Value"})
	for _, f := range record.Fields() {
		tw.AppendRow(table.Row{f.Name, f.Value})
	}
	tw.Render()
}

func printAttempts(attempts []usecase.Attempt) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Adapter", "Outcome", "Events", "Duration", "Error", "Artifact"})
	for _, a := range attempts {
		tw.AppendRow(table.Row{a.Adapter, a.Outcome, a.Events, a.Duration.Round(time.Millisecond), a.Err, a.Artifact})
	}
	tw.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
