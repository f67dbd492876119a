package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/truevine-insights/spectrum/internal/batch"
	"github.com/truevine-insights/spectrum/internal/config"
	"github.com/truevine-insights/spectrum/internal/convert"
	splog "github.com/truevine-insights/spectrum/internal/log"
	"github.com/truevine-insights/spectrum/internal/metadata"
	"github.com/truevine-insights/spectrum/internal/paths"
	"github.com/truevine-insights/spectrum/internal/preset"
	"github.com/truevine-insights/spectrum/internal/rawtool"
	"github.com/truevine-insights/spectrum/internal/scanner"
	"github.com/truevine-insights/spectrum/pkg/types"
)

var (
	appVersion = "2.1.0"

	cfgFile          string
	outputDir        string
	quality          int
	presetName       string
	recursive        bool
	preserveMetadata bool
	skipExisting     bool
	jobs             int
	logFile          string
	logJSON          bool
	outputSubdir     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "spectrum",
	Short: "Convert camera RAW files to high-quality JPEG",
	Long: `Spectrum converts camera RAW files (ARW, CR2, NEF, ...) to JPEG using
tuned presets, preserving metadata and skipping files that are already
converted.`,
}

var convertCmd = &cobra.Command{
	Use:   "convert [files or directory]",
	Short: "Convert RAW files or a whole directory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runConvert,
}

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "List RAW files and their conversion status",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the built-in conversion presets",
	Run: func(cmd *cobra.Command, args []string) {
		for _, b := range preset.All() {
			fmt.Printf("%-10s contrast=%.2f color=%.2f auto-bright=%v noise=%s\n",
				b.Name, b.Contrast, b.Color, b.AutoBright, b.NoiseReduction)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(appVersion)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(versionCmd)

	convertCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	convertCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default <input>/converted)")
	convertCmd.Flags().IntVarP(&quality, "quality", "q", 0, "JPEG quality 1-100 (0=config default)")
	convertCmd.Flags().StringVarP(&presetName, "preset", "p", "", "conversion preset: standard, neutral, vivid, clean")
	convertCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recurse into subdirectories")
	convertCmd.Flags().BoolVar(&preserveMetadata, "preserve-metadata", true, "copy metadata tags into outputs")
	convertCmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "skip files whose output already exists")
	convertCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "number of concurrent conversions (0=auto)")
	convertCmd.Flags().StringVar(&logFile, "log-file", "", "log file path")
	convertCmd.Flags().BoolVar(&logJSON, "log-json", false, "write JSON log lines")

	scanCmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "recurse into subdirectories")
	scanCmd.Flags().StringVar(&outputSubdir, "output-subdir", "", "output subdirectory name")
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}
	cfg = cfg.FromEnv()

	if quality > 0 {
		cfg.Quality = quality
	}
	if presetName != "" {
		cfg.DefaultPreset = presetName
	}
	if jobs > 0 {
		cfg.Jobs = jobs
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if logJSON {
		cfg.LogJSON = true
	}
	if outputSubdir != "" {
		cfg.OutputSubdir = outputSubdir
	}
	cfg.SkipExisting = skipExisting
	cfg.PreserveMetadata = preserveMetadata

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resolver := paths.NewResolver(cfg.VolumesDriveLetter())
	files, outDir, err := collectInputs(cfg, resolver, args)
	if err != nil {
		return err
	}
	if outputDir != "" {
		outDir = outputDir
	}

	logger, err := splog.New(cfg.LogFile, cfg.LogJSON, !cfg.LogJSON)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer logger.Close()

	presets := preset.NewResolver(cfg.DefaultPreset)
	converter := convert.New(
		rawtool.NewDcrawDecoder(),
		rawtool.NewJPEGEncoder(),
		presets,
		convert.Options{
			EnableSharpen:    cfg.EnableSharpen,
			SharpenRadius:    cfg.SharpenRadius,
			SharpenAmount:    cfg.SharpenAmount,
			SharpenThreshold: cfg.SharpenThreshold,
			AutoBright:       convert.AutoBrightMode(cfg.AutoBright),
			ChromaMode:       cfg.ChromaMode,
		},
	)
	orch := batch.New(resolver, converter, metadata.NewPropagator(), batch.Options{
		OutputExtension: cfg.OutputExtension,
		SkipExisting:    cfg.SkipExisting,
		Workers:         cfg.Jobs,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	processed := 0
	result, err := orch.Run(ctx, batch.Request{
		Files:            files,
		OutputDir:        outDir,
		Quality:          cfg.Quality,
		Preset:           cfg.DefaultPreset,
		PreserveMetadata: cfg.PreserveMetadata,
	}, func(outcome types.ConversionOutcome) {
		processed++
		logger.Progress(processed, len(files), filepath.Base(outcome.Src))
		logger.LogOutcome(outcome)
	})
	if err != nil {
		logger.Error("batch failed", err)
		return err
	}

	logger.Summary(*result, time.Since(start))
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", result.Failed, result.Total)
	}
	return nil
}

// collectInputs expands a single directory argument into its pending RAW
// files; explicit file arguments pass through untouched.
func collectInputs(cfg *config.Config, resolver *paths.Resolver, args []string) ([]string, string, error) {
	if len(args) == 1 {
		root := resolver.Resolve(paths.Normalize(args[0])).Path
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			sc := scanner.New(cfg.RawExtensions, cfg.OutputExtension)
			records, err := sc.Scan(root, recursive, cfg.OutputSubdir)
			if err != nil {
				return nil, "", err
			}
			var files []string
			for _, r := range records {
				files = append(files, r.Path)
			}
			if len(files) == 0 {
				return nil, "", fmt.Errorf("no RAW files found under %s", root)
			}
			return files, filepath.Join(root, cfg.OutputSubdir), nil
		}
	}

	outDir := ""
	if len(args) > 0 {
		outDir = filepath.Join(filepath.Dir(args[0]), cfg.OutputSubdir)
	}
	return args, outDir, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resolver := paths.NewResolver(cfg.VolumesDriveLetter())
	root := resolver.Resolve(paths.Normalize(args[0])).Path

	sc := scanner.New(cfg.RawExtensions, cfg.OutputExtension)
	records, err := sc.Scan(root, recursive, cfg.OutputSubdir)
	if err != nil {
		return err
	}

	for _, r := range records {
		status := "pending"
		if r.AlreadyConverted {
			status = "converted"
		}
		fmt.Printf("%-9s %10d  %s\n", status, r.Size, r.Path)
	}

	summary := scanner.Summarize(records)
	fmt.Printf("\n%d files, %d pending (%.2f MB), %d already converted\n",
		summary.TotalFiles, summary.PendingConversion, summary.TotalSizeMB, summary.AlreadyConverted)
	return nil
}
