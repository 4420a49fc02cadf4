package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/export"
	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/importer"
	"github.com/sells-group/trailscout/internal/model"
	"github.com/sells-group/trailscout/internal/trails"
)

const exportPageSize = 500

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export trails in a bounding box to CSV or XLSX",
	Long: `Writes every trail intersecting a bounding box as a spreadsheet.

Examples:
  trailscout export --bbox -84.0,35.4,-83.0,35.8 --format csv --output smokies.csv
  trailscout export --region smokies --format xlsx --output smokies.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		bboxFlag, _ := cmd.Flags().GetString("bbox")
		region, _ := cmd.Flags().GetString("region")
		bbox, err := importer.ResolveBBox(bboxFlag, region, cfg.Import.Regions)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		outputPath, _ := cmd.Flags().GetString("output")
		if outputPath == "" && format == export.FormatXLSX {
			return eris.New("export: --output is required for xlsx")
		}

		env, err := initEnv(ctx, "export", false)
		if err != nil {
			return err
		}
		defer env.Close()

		all, err := collectTrails(ctx, env.Trails, bbox, limit)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return eris.Wrap(err, "export: create file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if err := export.Write(out, format, all); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("trails", len(all)),
			zap.String("format", string(format)),
			zap.String("output", outputPath),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("bbox", "", "bounding box as west,south,east,north")
	exportCmd.Flags().String("region", "", "named region from import.regions")
	exportCmd.Flags().String("format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().String("output", "", "output file path (default: stdout, csv only)")
	exportCmd.Flags().Int("limit", 0, "maximum number of trails (0=all)")
	exportCmd.MarkFlagsMutuallyExclusive("bbox", "region")
	exportCmd.MarkFlagsOneRequired("bbox", "region")

	rootCmd.AddCommand(exportCmd)
}

// collectTrails pages through ListInBBox until the box is exhausted or limit
// trails are collected.
func collectTrails(ctx context.Context, st trails.Store, bbox geo.BBox, limit int) ([]model.Trail, error) {
	var all []model.Trail
	for {
		size := exportPageSize
		if limit > 0 && limit-len(all) < size {
			size = limit - len(all)
		}
		if size <= 0 {
			break
		}
		page, err := st.ListInBBox(ctx, bbox, size, len(all))
		if err != nil {
			return nil, eris.Wrap(err, "export: list trails")
		}
		all = append(all, page...)
		if len(page) < size {
			break
		}
	}
	return all, nil
}
