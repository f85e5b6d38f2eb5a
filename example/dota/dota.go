package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/swdee/go-obbdata"
	"github.com/swdee/go-obbdata/geometry"
	"github.com/swdee/go-obbdata/preprocess"
	"github.com/swdee/go-obbdata/render"
	"k8s.io/klog/v2"
)

// errDone stops the loader once enough batches have been collated
var errDone = errors.New("done")

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)

	stop()
	klog.Flush()

	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command, klog flags are registered on it
func newRootCmd() *cobra.Command {

	var configFile string

	rootCmd := &cobra.Command{
		Use:   "dota",
		Short: "Inspect and collate DOTA style oriented box datasets",
		Long: `dota loads a DOTA style dataset described by a YAML config file and
prints, renders or validates its samples and collated training batches.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "dota.yaml",
		"YAML dataset configuration file")

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	load := func() (obbdata.Config, *obbdata.Dataset, error) {
		cfg, err := obbdata.LoadConfig(configFile)

		if err != nil {
			return cfg, nil, err
		}

		ds, err := obbdata.NewDataset(cfg)

		return cfg, ds, err
	}

	rootCmd.AddCommand(newInspectCmd(load))
	rootCmd.AddCommand(newCollateCmd(load))
	rootCmd.AddCommand(newValidateCmd(load))

	return rootCmd
}

type loadFunc func() (obbdata.Config, *obbdata.Dataset, error)

func newInspectCmd(load loadFunc) *cobra.Command {

	var output string

	cmd := &cobra.Command{
		Use:   "inspect <index>",
		Short: "Print the boxes of one sample and optionally render them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {

			index, err := strconv.Atoi(args[0])

			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}

			cfg, ds, err := load()

			if err != nil {
				return err
			}

			sample, err := ds.Sample(index)

			if err != nil {
				return err
			}

			defer sample.Close()

			fmt.Printf("%s\n", sample.Path)
			fmt.Printf("  image: %dx%d\n", sample.Image.Cols(), sample.Image.Rows())
			fmt.Printf("  boxes: %d (%s)\n", sample.Boxes.Len(), cfg.BoxMode)

			for i := 0; i < sample.Boxes.Len(); i++ {
				row := sample.Boxes.Row(i)
				name, _ := ds.Classes().Name(int(row[obbdata.RotatedParams-1]))

				fmt.Printf("  %3d %-20s %8.2f %8.2f %8.2f %8.2f %7.4f\n",
					i, name, row[0], row[1], row[2], row[3], row[4])
			}

			if output == "" {
				return nil
			}

			mode, _ := geometry.ParseBoxMode(cfg.BoxMode)
			dec := render.Decoder{Mode: mode, Classes: ds.Classes()}

			img, err := dec.Sample(sample, render.DefaultFont(), 2)

			if err != nil {
				return err
			}

			defer img.Close()

			if err := render.WriteRGB(output, img); err != nil {
				return err
			}

			fmt.Printf("saved rendered sample to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the rendered sample to this image file")

	return cmd
}

func newCollateCmd(load loadFunc) *cobra.Command {

	var (
		batches   int
		outputDir string
	)

	params := obbdata.DefaultLoaderParams()

	cmd := &cobra.Command{
		Use:   "collate",
		Short: "Collate batches and print their tensor shapes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {

			cfg, ds, err := load()

			if err != nil {
				return err
			}

			collator, err := obbdata.NewCollator(cfg.Collate, cfg.Seed)

			if err != nil {
				return err
			}

			params.Seed = cfg.Seed

			loader, err := obbdata.NewLoader(ds, collator, params)

			if err != nil {
				return err
			}

			defer loader.Close()

			if outputDir != "" {
				if err := os.MkdirAll(outputDir, 0o755); err != nil {
					return err
				}
			}

			mode, _ := geometry.ParseBoxMode(cfg.BoxMode)
			dec := render.Decoder{Mode: mode, Classes: ds.Classes()}
			count := 0

			err = loader.Run(cmd.Context(), func(b *obbdata.Batch) error {

				images := b.Images()
				boxes := b.Boxes()

				fmt.Printf("batch %d: scale %d images %v (%s) boxes %v (%s)\n",
					count, b.TargetSize,
					images.Shape(), humanize.Bytes(uint64(images.Len()*4)),
					boxes.Shape(), humanize.Bytes(uint64(boxes.Len()*4)))

				if outputDir != "" {
					for i := 0; i < b.Size(); i++ {
						img, err := dec.Batch(b, i, preprocess.ImageNetNormalizer(),
							render.DefaultFont(), 1)

						if err != nil {
							return err
						}

						path := filepath.Join(outputDir, fmt.Sprintf("batch%03d-%02d.png", count, i))
						err = render.WriteRGB(path, img)
						img.Close()

						if err != nil {
							return err
						}
					}
				}

				count++

				if batches > 0 && count >= batches {
					return errDone
				}

				return nil
			})

			if err != nil && !errors.Is(err, errDone) {
				return err
			}

			if skipped := loader.Skipped(); len(skipped) > 0 {
				fmt.Printf("skipped %d broken samples: %v\n", len(skipped), skipped)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&batches, "batches", "n", 1, "number of batches to collate, 0 for all")
	cmd.Flags().IntVarP(&params.BatchSize, "batch-size", "b", params.BatchSize, "samples per batch")
	cmd.Flags().IntVarP(&params.Workers, "workers", "w", params.Workers, "concurrent sample loaders")
	cmd.Flags().BoolVar(&params.Shuffle, "shuffle", params.Shuffle, "shuffle the sample order")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory to write rendered batch images to")

	return cmd
}

func newValidateCmd(load loadFunc) *cobra.Command {

	var dupThreshold float64

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load every sample and report the ones that fail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {

			cfg, ds, err := load()

			if err != nil {
				return err
			}

			mode, _ := geometry.ParseBoxMode(cfg.BoxMode)
			bar := progressbar.Default(int64(ds.Len()), "validating")

			var (
				boxes      int
				empty      int
				duplicates int
				broken     []string
			)

			for i := 0; i < ds.Len(); i++ {

				if err := cmd.Context().Err(); err != nil {
					return err
				}

				sample, err := ds.Sample(i)
				_ = bar.Add(1)

				if err != nil {
					broken = append(broken, fmt.Sprintf("%d: %v", i, err))
					continue
				}

				boxes += sample.Boxes.Len()

				if sample.Boxes.Len() == 0 {
					empty++
				}

				duplicates += len(sampleDuplicates(sample.Boxes, mode, dupThreshold))
				sample.Close()
			}

			_ = bar.Finish()

			fmt.Printf("samples: %s, boxes: %s, without boxes: %s, duplicate pairs: %s, broken: %s\n",
				humanize.Comma(int64(ds.Len())), humanize.Comma(int64(boxes)),
				humanize.Comma(int64(empty)), humanize.Comma(int64(duplicates)),
				humanize.Comma(int64(len(broken))))

			for _, b := range broken {
				fmt.Println("  " + b)
			}

			if len(broken) > 0 {
				return fmt.Errorf("%d samples failed to load", len(broken))
			}

			return nil
		},
	}

	cmd.Flags().Float64Var(&dupThreshold, "duplicate-iou", 0.95,
		"IoU above which two boxes of the same class count as duplicates")

	return cmd
}

// sampleDuplicates returns the pairs of same class boxes of a sample that
// overlap above the threshold
func sampleDuplicates(boxes *obbdata.Boxes, mode geometry.BoxMode, threshold float64) [][2]int {

	rotated := make([]geometry.RotatedBox, boxes.Len())
	classes := make([]int, boxes.Len())

	for i := range rotated {
		row := boxes.Row(i)

		var p [5]float32
		copy(p[:], row[:5])

		rotated[i] = geometry.Decode(p, mode)
		classes[i] = int(row[obbdata.RotatedParams-1])
	}

	return geometry.Duplicates(rotated, classes, threshold)
}
