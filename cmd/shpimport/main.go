package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dyuri/shpimport/internal/config"
	"github.com/dyuri/shpimport/internal/drawing"
	"github.com/dyuri/shpimport/internal/importer"
	"github.com/dyuri/shpimport/internal/logger"
	"github.com/dyuri/shpimport/internal/metrics"
	"github.com/dyuri/shpimport/internal/model"
	"github.com/dyuri/shpimport/internal/report"
	"github.com/dyuri/shpimport/internal/source"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Set up by the root command before any subcommand runs
var (
	cfg *config.Config
	lg  *log.Logger
)

// drawingDefaults are the current settings of a new drawing
var drawingDefaults = drawing.Attributes{
	Color:    model.Color{R: 255, G: 255, B: 255},
	LineType: "CONTINUOUS",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shpimport",
	Short: "Import ESRI shapefiles into CAD drawings",
	Long: `shpimport is a tool for importing ESRI shapefiles into CAD drawings.

It reads the geometry (.shp), index (.shx) and attribute (.dbf) files,
styles every record from fixed values or attribute fields, and writes
the result as DXF or GeoJSON. Shapefiles can be read from plain files,
directories, zip and tar archives, and disk images.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default: shpimport.yaml in . or $HOME/.shpimport)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text, json")
	pf.Bool("image", false, "Read the input as a disk image")
	pf.String("member", "", "Shapefile inside a directory, archive or image (default: first .shp)")
	pf.String("encoding", "", "Attribute text encoding (default: .cpg file or table language driver)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	file, _ := cmd.Flags().GetString("config")
	c, err := config.Load(v, file)
	if err != nil {
		return err
	}
	l, err := logger.New(c.Log.Level, c.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	cfg, lg = c, l
	return nil
}

// openSet opens the input named on the command line, honouring --image
// and --member
func openSet(cmd *cobra.Command, location string) (*source.Set, error) {
	image, _ := cmd.Flags().GetBool("image")
	member, _ := cmd.Flags().GetString("member")
	if image {
		return source.OpenImage(location, member)
	}
	return source.Open(location, member)
}

// import command
var importCmd = &cobra.Command{
	Use:   "import <input>",
	Short: "Import a shapefile into a drawing",
	Long: `Import the records of a shapefile as drawing entities.

The input is a .shp file, a directory, a zip or tar archive, or a disk
image with --image. Style properties accept "current" (the drawing's
setting), "field:NAME" (read from an attribute) or a literal value.

The drawing format follows the --output extension: .dxf or .geojson.
Without --output only the import report is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringP("output", "o", "", "Output drawing: .dxf or .geojson")
	f.String("layer", "", "Destination layer (default: current layer)")
	f.String("layer-field", "", "Attribute field naming the layer of each record")
	f.String("color", "current", "Color: current, field:NAME, a name, 1-9, #rrggbb or r,g,b")
	f.String("linetype", "current", "Line type: current, field:NAME or a name")
	f.String("width", "current", "Line width in mm: current, field:NAME or a number")
	f.String("label", "", "Label text: field:NAME or a literal (default: no labels)")
	f.String("point-mode", "point", "Import points as: point, label")
	f.Bool("trust-part-types", false, "Take multipatch ring roles from the part types")
	f.Int("queue-size", importer.DefaultQueueSize, "Decoded records buffered ahead of insertion")
	f.String("metrics-file", "", "Write Prometheus metrics to this textfile")
	f.Int("max-warnings", 20, "Warnings listed in the report")
}

func runImport(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	maxWarnings, _ := cmd.Flags().GetInt("max-warnings")

	// Check the output format before doing any work
	write, err := drawingWriter(outputPath)
	if err != nil {
		return err
	}

	opts, err := cfg.ImportOptions()
	if err != nil {
		return fmt.Errorf("invalid import settings: %w", err)
	}
	opts.Logger = lg
	if metricsFile != "" {
		opts.Metrics, err = metrics.NewImportCollector(prometheus.NewRegistry())
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	set, err := openSet(cmd, args[0])
	if err != nil {
		return err
	}
	defer set.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc := drawing.New(drawingDefaults)
	res, importErr := importer.Import(ctx, set, doc, opts)
	if res != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), report.Render(res, maxWarnings))
	}
	if err := opts.Metrics.WriteTextfile(metricsFile); err != nil {
		lg.WithError(err).Warn("failed to write metrics")
	}
	if importErr != nil {
		return importErr
	}
	if write == nil {
		return nil
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := write(out, doc); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", outputPath, err)
	}
	lg.WithField("output", outputPath).Info("drawing written")
	return nil
}

// drawingWriter picks the writer for the output extension; nil when no
// output is wanted
func drawingWriter(path string) (func(io.Writer, *drawing.Drawing) error, error) {
	if path == "" {
		return nil, nil
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".dxf":
		return drawing.WriteDXF, nil
	case ".geojson", ".json":
		return drawing.WriteGeoJSON, nil
	default:
		return nil, fmt.Errorf("unknown output format %q: use .dxf or .geojson", ext)
	}
}

// extract command
var extractCmd = &cobra.Command{
	Use:   "extract <input>",
	Short: "Extract a shapefile from an archive or disk image",
	Long: `Copy the .shp, .shx, .dbf and .cpg files of one shapefile out of a
zip or tar archive, or a disk image with --image, into a directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringP("output", "o", "", "Output directory (required for extraction)")
	extractCmd.Flags().BoolP("list", "l", false, "List the files without extracting")
}

func runExtract(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	list, _ := cmd.Flags().GetBool("list")

	set, err := openSet(cmd, inputPath)
	if err != nil {
		return err
	}
	defer set.Close()

	stdout := cmd.OutOrStdout()
	if list {
		files := set.Files()
		fmt.Fprintf(stdout, "Found %d file(s) for %s in %s:\n", len(files), set.Name, filepath.Base(inputPath))
		listed := make([]listedFile, len(files))
		for i, f := range files {
			listed[i] = listedFile{Name: f.Name, Size: f.Size}
		}
		return writeFileList(stdout, listed)
	}
	if outputPath == "" {
		return fmt.Errorf("--output is required unless --list is given")
	}

	written, err := source.Extract(set, outputPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Extracted %d file(s) to %s:\n", len(written), outputPath)
	listed := make([]listedFile, len(written))
	for i, file := range written {
		listed[i].Name = filepath.Base(file)
		stat, err := os.Stat(file)
		if err != nil {
			listed[i].Err = err
			continue
		}
		listed[i].Size = stat.Size()
	}
	return writeFileList(stdout, listed)
}

type listedFile struct {
	Name string
	Size int64
	Err  error
}

// writeFileList prints one aligned line per member. Shape and index files
// also show their length in 16-bit words, the unit their headers declare.
func writeFileList(w io.Writer, files []listedFile) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range files {
		if f.Err != nil {
			fmt.Fprintf(tw, "  %s\terror: %v\t\n", f.Name, f.Err)
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".shp", ".shx":
			fmt.Fprintf(tw, "  %s\t%d bytes\t%d words\n", f.Name, f.Size, f.Size/2)
		default:
			fmt.Fprintf(tw, "  %s\t%d bytes\t\n", f.Name, f.Size)
		}
	}
	return tw.Flush()
}

// version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	// No config or logger needed
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shpimport version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
	},
}
