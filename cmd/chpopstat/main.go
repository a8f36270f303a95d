// Command chpopstat converts the population statistics of the Swiss
// Federal Statistical Office from hectare regions to S2 cells.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"chpopstat/internal/config"
	"chpopstat/internal/handlers"
	"chpopstat/internal/services"
	"chpopstat/internal/upstream"
)

var (
	configFile string
	envFile    string
	cfg        config.Config
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "chpopstat",
		Short:        "Distribute Swiss hectare population statistics onto S2 cells",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(configFile, envFile); err != nil {
				return err
			}
			overrideFromFlags(cmd)
			if err := cfg.Validate(); err != nil {
				return err
			}
			cfg.SetupLogging()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "config.json", "JSON configuration file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with environment overrides")
	root.PersistentFlags().Int("level", 17, "Level of S2 cells being aggregated")
	root.PersistentFlags().Int("workers", 1, "Number of concurrent overlap computations")
	root.PersistentFlags().Int("max-cells", 10000, "Upper bound on covering cells per region")
	root.PersistentFlags().String("delimiter", ",", "Field delimiter of the input table")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(convertCmd(), fetchCmd(), serveCmd())
	return root
}

// overrideFromFlags applies flags the user set explicitly on top of the
// file and environment configuration.
func overrideFromFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("level") {
		cfg.Level, _ = flags.GetInt("level")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("max-cells") {
		cfg.MaxCells, _ = flags.GetInt("max-cells")
	}
	if flags.Changed("delimiter") {
		cfg.Delimiter, _ = flags.GetString("delimiter")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}
}

func newConvertService() *services.ConvertService {
	return services.NewConvertService(services.OptionsFromConfig(cfg))
}

func convertCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "convert INPUT OUTPUT",
		Short: "Convert a STATPOP table (.csv, .csv.gz or .zip) to S2 cell statistics",
		Long: "Convert a STATPOP table to S2 cell statistics. An OUTPUT ending in .gz\n" +
			"is gzip-compressed; \"-\" stands for standard input or output.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains([]string{"csv", "geojson"}, format) {
				return fmt.Errorf("unknown format %q", format)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			in, err := services.OpenInput(config.GetDataFilePath(args[0]))
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := services.CreateOutput(config.GetDataFilePath(args[1]))
			if err != nil {
				return err
			}
			defer out.Close()

			if err := runConvert(ctx, newConvertService(), in, out, format); err != nil {
				return err
			}
			return out.Commit()
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or geojson")
	return cmd
}

func runConvert(ctx context.Context, s *services.ConvertService, in io.Reader, out io.Writer, format string) error {
	if format == "csv" {
		_, err := s.Convert(ctx, in, out, cfg.Level)
		return err
	}
	cells, summary, err := s.Accumulate(ctx, in, cfg.Level)
	if err != nil {
		return err
	}
	n, err := services.WriteGeoJSON(out, cells)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"rows":    summary.Rows,
		"skipped": summary.Skipped,
		"emitted": n,
	}).Info("Conversion finished")
	return nil
}

func fetchCmd() *cobra.Command {
	var (
		dataset     string
		upstreamURL string
		check       bool
	)
	cmd := &cobra.Command{
		Use:   "fetch [OUTPUT_DIR]",
		Short: "Fetch the latest upstream release and aggregate it onto S2 cells",
		Long: "Fetch the latest release of a dataset and aggregate it onto S2 cells.\n\n" +
			"  chpopstat    hectare population statistics (STATPOP) of bfs.admin.ch\n" +
			"  wikicommons  geotagged media of Wikimedia Commons\n\n" +
			"The result is written to OUTPUT_DIR (default DATA_DIR) as\n" +
			"<dataset>-<YYYYMMDD>.csv.gz, named after the publication date.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			fetcher := upstream.NewFetcher(nil, nil)
			ds, err := upstream.NewDataset(dataset, fetcher, upstreamURL)
			if err != nil {
				return err
			}
			outDir := config.DataDir
			if len(args) > 0 {
				outDir = config.GetDataFilePath(args[0])
			}
			return runFetch(ctx, fetcher, ds, outDir, check, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "chpopstat", "Dataset to fetch: chpopstat or wikicommons")
	cmd.Flags().StringVar(&upstreamURL, "upstream-url", "", "Alternative upstream server or mirror")
	cmd.Flags().BoolVar(&check, "check", false, "Only print the latest upstream version")
	return cmd
}

func runFetch(ctx context.Context, fetcher *upstream.Fetcher, ds upstream.Dataset, outDir string, check bool, stdout io.Writer) error {
	rel, err := ds.Latest(ctx)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"dataset":   ds.Name(),
		"published": rel.Published.Format("2006-01-02"),
		"url":       rel.URL,
	}).Info("Found upstream release")
	if check {
		_, err := fmt.Fprintf(stdout, "%s %s\n", rel.Published.Format("2006-01-02"), rel.URL)
		return err
	}

	tempDir, err := os.MkdirTemp("", "chpopstat-fetch")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	fetched := filepath.Join(tempDir, rel.File)
	if err := fetcher.Download(ctx, rel.URL, fetched); err != nil {
		return err
	}
	in, err := services.OpenInput(fetched)
	if err != nil {
		return err
	}
	defer in.Close()

	outPath := filepath.Join(outDir, fmt.Sprintf("%s-%s.csv.gz", ds.Name(), rel.Version()))
	out, err := services.CreateOutput(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	switch ds.Name() {
	case "wikicommons":
		counts, _, err := services.CountGeotags(ctx, in, cfg.Level, nil)
		if err != nil {
			return err
		}
		if err := services.WriteGeotagCSV(out, counts); err != nil {
			return err
		}
	default:
		if err := runConvert(ctx, newConvertService(), in, out, "csv"); err != nil {
			return err
		}
	}
	if err := out.Commit(); err != nil {
		return err
	}
	log.WithField("path", outPath).Info("Wrote aggregated release")
	return nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /convert over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return handlers.ListenAndServe(ctx, cfg)
		},
	}
	cmd.Flags().String("port", "8080", "HTTP port")
	return cmd
}
