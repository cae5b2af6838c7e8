package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/styledmap/smp/pkg/container"
	"github.com/styledmap/smp/pkg/validator"
)

var readResourcePath string
var readOutPath string

var readCmd = &cobra.Command{
	Use:   "read <archive>",
	Short: "Inspect an SMP archive or extract a single resource from it",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

func init() {
	readCmd.Flags().StringVar(&readResourcePath, "resource", "", "internal path to extract (e.g. s/base/0/0/0.mvt.gz)")
	readCmd.Flags().StringVar(&readOutPath, "out", "", "destination for --resource (default: stdout)")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	path := args[0]

	if readResourcePath != "" {
		return extractResource(cmd, path, readResourcePath)
	}

	summary, err := validator.Summarize(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "version:   %s\n", summary.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "maxzoom:   %d\n", summary.MaxZoom)
	fmt.Fprintf(cmd.OutOrStdout(), "bounds:    %v\n", summary.Bounds)
	fmt.Fprintf(cmd.OutOrStdout(), "tiles:     %d\n", summary.NumTiles)
	fmt.Fprintf(cmd.OutOrStdout(), "fonts:     %d\n", summary.NumFonts)
	fmt.Fprintf(cmd.OutOrStdout(), "sprites:   %d\n", summary.NumSprite)
	return nil
}

func extractResource(cmd *cobra.Command, archivePath, resourcePath string) error {
	reader, err := container.Open(archivePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	res, err := reader.GetResource(resourcePath)
	if err != nil {
		return err
	}
	defer res.Reader.Close()

	dst := cmd.OutOrStdout()
	if readOutPath != "" {
		f, err := os.Create(readOutPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", readOutPath, err)
		}
		defer f.Close()
		dst = f
	}

	_, err = io.Copy(dst, res.Reader)
	return err
}
