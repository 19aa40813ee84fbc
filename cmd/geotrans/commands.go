package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jobrunner/geotrans/internal/app"
	"github.com/jobrunner/geotrans/internal/application"
	"github.com/jobrunner/geotrans/internal/config"
	"github.com/jobrunner/geotrans/internal/domain"
)

// errPointsFailed signals a transformation with failed points.
var errPointsFailed = errors.New("some points could not be transformed")

// core loads the configuration and creates the engine for one-shot
// commands. Nothing is served, so metrics stay disabled.
func (c *cli) core(cmd *cobra.Command) (*config.Config, *app.Core, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg.Metrics.Enabled = false
	logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())

	core, err := app.NewCore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, core, nil
}

func (c *cli) newTransformCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "transform [x,y[,z] ...]",
		Short: "Transform coordinates given as arguments or on stdin",
		Example: `  geotrans transform --from EPSG:4326 --to EPSG:25832 9,50
  geotrans transform --to EPSG:31467 < points.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, core, err := c.core(cmd)
			if err != nil {
				return err
			}

			var input io.Reader = cmd.InOrStdin()
			if len(args) > 0 {
				input = strings.NewReader(strings.Join(args, "\n"))
			}
			batch, err := application.ParseBatch(input)
			if err != nil {
				return err
			}

			req := domain.TransformRequest{
				Source: firstOf(from, batch.Source, cfg.Batch.Source),
				Target: firstOf(to, batch.Target, cfg.Engine.Target),
				Points: batch.Points,
			}
			resp, err := core.Engine.Transform(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writePoints(cmd.OutOrStdout(), cmd.ErrOrStderr(), resp, batch.Lines)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source CRS (default: batch.source)")
	cmd.Flags().StringVar(&to, "to", "", "target CRS (default: engine.target)")
	return cmd
}

// writePoints prints one "x,y[,z]" line per point. Failed points are
// reported on errOut with their input line.
func writePoints(out, errOut io.Writer, resp *domain.TransformResponse, lines []int) error {
	for i, p := range resp.Points {
		if msg, ok := resp.Failed[i]; ok {
			fmt.Fprintf(errOut, "line %d: %s\n", lines[i], msg)
			fmt.Fprintln(out, "NaN,NaN")
			continue
		}
		fields := []string{formatFloat(p.X), formatFloat(p.Y)}
		if p.HasZ() {
			fields = append(fields, formatFloat(p.Z))
		}
		fmt.Fprintln(out, strings.Join(fields, ","))
	}
	if resp.HasFailures() {
		return fmt.Errorf("%d of %d points: %w", len(resp.Failed), len(resp.Points), errPointsFailed)
	}
	return nil
}

func (c *cli) newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [key ...]",
		Short: "Transform batch files of the storage once",
		Long: `Transform the given batch files, or all batch files of the configured
storage, and write the results to the configured sink.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			cfg.Metrics.Enabled = false
			cfg.Server.Enabled = false
			cfg.Watch.Enabled = false
			logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Sink.Close() }()

			return runBatch(cmd.Context(), cmd.OutOrStdout(), a.BatchService, args)
		},
	}
}

func runBatch(ctx context.Context, out io.Writer, svc *application.BatchService, keys []string) error {
	if len(keys) == 0 {
		summary, err := svc.ProcessAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "files: %d (%d failed), points: %d (%d failed)\n",
			summary.Files, summary.FilesFailed, summary.Points, summary.PointsFailed)
		if summary.FilesFailed > 0 {
			return fmt.Errorf("%d of %d batch files failed", summary.FilesFailed, summary.Files)
		}
		return nil
	}

	var failed int
	for _, key := range keys {
		result, err := svc.ProcessFile(ctx, key)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", key, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s: %d points (%d failed) %s -> %s\n",
			key, len(result.Results), result.Failed, result.Source, result.Target)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d batch files failed", failed, len(keys))
	}
	return nil
}

func (c *cli) newDomainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domain CODE",
		Short: "Print the domain of validity of a CRS in its own coordinates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, core, err := c.core(cmd)
			if err != nil {
				return err
			}
			box, err := core.Engine.ValidDomain(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n",
				formatFloat(box[0]), formatFloat(box[1]), formatFloat(box[2]), formatFloat(box[3]))
			return nil
		},
	}
}

func (c *cli) newListCmd() *cobra.Command {
	var bbox, at string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the known CRS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, core, err := c.core(cmd)
			if err != nil {
				return err
			}

			var list []domain.CRSInfo
			switch {
			case at != "":
				lon, lat, err := domain.ParsePosition(at)
				if err != nil {
					return err
				}
				list, err = core.Engine.CRSAt(cmd.Context(), lon, lat)
				if err != nil {
					return err
				}
			case bbox != "":
				b, err := domain.ParseBBox(bbox)
				if err != nil {
					return err
				}
				list, err = core.Engine.ListCRS(cmd.Context(), &b)
				if err != nil {
					return err
				}
			default:
				list, err = core.Engine.ListCRS(cmd.Context(), nil)
				if err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tTYPE\tDIM\tNAME")
			for _, info := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", info.Code, info.Type, info.Dimension, info.Name)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&bbox, "bbox", "", `WGS84 area filter "minLon,minLat,maxLon,maxLat"`)
	cmd.Flags().StringVar(&at, "at", "", `WGS84 position filter "lon,lat"`)
	cmd.MarkFlagsMutuallyExclusive("bbox", "at")
	return cmd
}

func (c *cli) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info CODE",
		Short: "Describe a CRS as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, core, err := c.core(cmd)
			if err != nil {
				return err
			}
			info, err := core.Engine.DescribeCRS(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(info); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
