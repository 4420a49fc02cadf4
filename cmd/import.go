package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/trailscout/internal/importer"
	"github.com/sells-group/trailscout/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import trails into the database",
	Long:  "Commands for loading hiking trails from OpenStreetMap or from polyline shapefiles.",
}

// -- import osm --

var importOSMCmd = &cobra.Command{
	Use:   "osm",
	Short: "Import hiking routes from the Overpass API",
	Long: `Fetches hiking route relations inside a bounding box from the Overpass API,
tile by tile, reconstructs their geometry and upserts them as trails.

Examples:
  # Import an explicit area (west,south,east,north)
  trailscout import osm --bbox -84.0,35.4,-83.0,35.8

  # Import a region named in config (import.regions.smokies)
  trailscout import osm --region smokies`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		bboxFlag, _ := cmd.Flags().GetString("bbox")
		region, _ := cmd.Flags().GetString("region")
		bbox, err := importer.ResolveBBox(bboxFlag, region, cfg.Import.Regions)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "import", true)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := newImporter(env, nil).ImportOSM(ctx, bbox)
		if run != nil {
			printRunSummary(os.Stdout, run)
		}
		if err != nil {
			return eris.Wrap(err, "import osm")
		}
		if run.Status == model.RunStatusFailed {
			return eris.Errorf("import osm: run %s failed: %s", run.ID, run.Error)
		}
		return nil
	},
}

// -- import shapefile --

var importShapefileCmd = &cobra.Command{
	Use:   "shapefile <path>",
	Short: "Import trails from a polyline shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		nameField, _ := cmd.Flags().GetString("name-field")
		difficultyField, _ := cmd.Flags().GetString("difficulty-field")
		idField, _ := cmd.Flags().GetString("id-field")

		env, err := initEnv(ctx, "import", true)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := newImporter(env, nil).ImportShapefile(ctx, args[0], importer.FieldMapping{
			NameField:       nameField,
			DifficultyField: difficultyField,
			IDField:         idField,
		})
		if run != nil {
			printRunSummary(os.Stdout, run)
		}
		if err != nil {
			return eris.Wrap(err, "import shapefile")
		}
		return nil
	},
}

func init() {
	importOSMCmd.Flags().String("bbox", "", "bounding box as west,south,east,north")
	importOSMCmd.Flags().String("region", "", "named region from import.regions")
	importOSMCmd.MarkFlagsMutuallyExclusive("bbox", "region")
	importOSMCmd.MarkFlagsOneRequired("bbox", "region")

	importShapefileCmd.Flags().String("name-field", "NAME", "attribute holding the trail name")
	importShapefileCmd.Flags().String("difficulty-field", "", "attribute holding the difficulty grade")
	importShapefileCmd.Flags().String("id-field", "", "attribute holding a stable source ID")

	importCmd.AddCommand(importOSMCmd)
	importCmd.AddCommand(importShapefileCmd)
	rootCmd.AddCommand(importCmd)
}

// printRunSummary writes a one-paragraph summary of a finished run.
func printRunSummary(w io.Writer, run *model.ImportRun) {
	_, _ = fmt.Fprintf(w, "Run %s (%s, %s): %s\n", run.ID, run.Source, run.Region, run.Status)
	_, _ = fmt.Fprintf(w, "  tiles:  %d done, %d failed of %d\n", run.TilesDone, run.TilesFailed, run.TilesTotal)
	_, _ = fmt.Fprintf(w, "  trails: %d imported, %d skipped\n", run.TrailsImported, run.TrailsSkipped)
	if run.Error != "" {
		_, _ = fmt.Fprintf(w, "  error:  %s\n", run.Error)
	}
}
