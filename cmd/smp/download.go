package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/styledmap/smp/pkg/download"
	"github.com/styledmap/smp/pkg/scheduler"
	"github.com/styledmap/smp/pkg/smpgeo"
)

var (
	downloadOut     string
	downloadBBox    string
	downloadMaxzoom int
	downloadFonts   string
	downloadWorkers int
	downloadTimeout time.Duration
)

var downloadCmd = &cobra.Command{
	Use:   "download <style-url>",
	Short: "Fetch a style and its resources into an SMP archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

func init() {
	downloadCmd.Flags().StringVar(&downloadOut, "out", "map.smp", "output archive path")
	downloadCmd.Flags().StringVar(&downloadBBox, "bbox", "", "west,south,east,north (required)")
	downloadCmd.Flags().IntVar(&downloadMaxzoom, "maxzoom", 14, "maximum zoom to fetch")
	downloadCmd.Flags().StringVar(&downloadFonts, "fonts", "", "comma-separated list of font names to bundle glyphs for")
	downloadCmd.Flags().IntVar(&downloadWorkers, "workers", scheduler.DefaultConfig.Workers, "concurrent fetch workers")
	downloadCmd.Flags().DurationVar(&downloadTimeout, "timeout", 10*time.Minute, "overall download timeout")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	styleURL := args[0]

	bbox, err := parseBBox(downloadBBox)
	if err != nil {
		return err
	}

	var fonts []string
	if downloadFonts != "" {
		fonts = strings.Split(downloadFonts, ",")
	}

	out, err := os.Create(downloadOut)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), downloadTimeout)
	defer cancel()

	d := download.New(logger)
	schedCfg := scheduler.DefaultConfig
	schedCfg.Workers = downloadWorkers
	schedCfg.Logger = logger

	req := download.Request{
		StyleURL:       styleURL,
		BBox:           bbox,
		MaxZoom:        downloadMaxzoom,
		AccessToken:    viper.GetString("access-token"),
		AvailableFonts: fonts,
		Scheduler:      schedCfg,
	}

	res, err := d.Run(ctx, req, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d sources, %d planned tiles, %d font stacks\n",
		downloadOut, res.SourceCount, res.PlanSize, len(res.FontStacks))
	for _, e := range res.ResourceErrs {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", e)
	}
	return nil
}

func parseBBox(s string) (smpgeo.BBox, error) {
	if s == "" {
		return smpgeo.BBox{}, fmt.Errorf("--bbox is required (west,south,east,north)")
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return smpgeo.BBox{}, fmt.Errorf("--bbox must have 4 comma-separated values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &v[i]); err != nil {
			return smpgeo.BBox{}, fmt.Errorf("parsing bbox value %q: %w", p, err)
		}
	}
	return smpgeo.BBox{West: v[0], South: v[1], East: v[2], North: v[3]}, nil
}
