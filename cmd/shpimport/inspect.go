package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyuri/shpimport/internal/binary"
	"github.com/dyuri/shpimport/internal/dbf"
	"github.com/dyuri/shpimport/internal/importer"
	"github.com/dyuri/shpimport/internal/model"
	"github.com/dyuri/shpimport/internal/source"
	"github.com/dyuri/shpimport/internal/text"
)

// openReaders opens the geometry reader, using the index when it is
// consistent, and the attribute table of set
func openReaders(set *source.Set) (*binary.Reader, *binary.Header, *dbf.Reader, error) {
	rd := binary.NewReader(set.Geometry.Data, set.Geometry.Size)
	header, err := rd.ReadHeader()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", set.Geometry.Name, err)
	}
	if set.Index != nil {
		if err := rd.LoadIndex(set.Index.Data, set.Index.Size); err != nil {
			lg.WithError(err).Warn("index ignored")
		}
	}

	table, warnings, err := importer.OpenTable(set, cfg.Encoding)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, w := range warnings {
		lg.WithError(w).Warn("attribute table")
	}
	return rd, header, table, nil
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info <input>",
	Short: "Display shapefile information",
	Long: `Display the header, extent, record count and index status of a
shapefile, and the fields of its attribute table.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	set, err := openSet(cmd, args[0])
	if err != nil {
		return err
	}
	defer set.Close()

	rd, header, table, err := openReaders(set)
	if err != nil {
		return err
	}

	count := rd.NumRecords()
	if count < 0 {
		entries, err := rd.Scan()
		if err != nil {
			lg.WithError(err).Warn("record walk stopped early")
		}
		count = len(entries)
	}

	w := text.NewWriter(cmd.OutOrStdout())
	if err := w.WriteHeader(set.Geometry.Name, header, rd.Indexed(), count); err != nil {
		return err
	}
	return w.WriteTable(set.Table.Name, table.Header(), table.Fields())
}

// dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <input>",
	Short: "Print decoded records",
	Long: `Print every decoded geometry record with its attribute row.

Records that fail to decode are listed with their error.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().Int("limit", 0, "Stop after this many records (0: all)")
	dumpCmd.Flags().Int("max-points", 0, "Vertices listed per record (0: all)")
}

func runDump(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	maxPoints, _ := cmd.Flags().GetInt("max-points")

	set, err := openSet(cmd, args[0])
	if err != nil {
		return err
	}
	defer set.Close()

	rd, header, table, err := openReaders(set)
	if err != nil {
		return err
	}

	w := text.NewWriter(cmd.OutOrStdout())
	w.MaxPoints = maxPoints
	if err := w.WriteHeader(set.Geometry.Name, header, rd.Indexed(), rd.NumRecords()); err != nil {
		return err
	}

	for n := 0; limit == 0 || n < limit; n++ {
		rec, recErr := rd.Next()
		if errors.Is(recErr, io.EOF) {
			break
		}
		if rec == nil {
			return recErr
		}

		var row *model.AttributeRow
		if rec.Index < table.NumRecords() {
			row, _, err = table.Row(rec.Index)
			if err != nil {
				lg.WithError(err).WithField("record", rec.Index).Warn("attribute row unreadable")
			}
		}
		if err := w.WriteRecord(rec, row, recErr); err != nil {
			return err
		}
	}
	return nil
}

// reindex command
var reindexCmd = &cobra.Command{
	Use:   "reindex <input.shp>",
	Short: "Rebuild the .shx index of a shapefile",
	Long: `Walk the records of a .shp file and write a fresh .shx index.

The index is written next to the input unless --output is given. A
damaged record ends the walk; the records before it are indexed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().StringP("output", "o", "", "Output index file (default: input with .shx)")
}

func runReindex(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")

	ext := filepath.Ext(inputPath)
	if !strings.EqualFold(ext, source.ExtGeometry) {
		return fmt.Errorf("%w: %s does not end in %s", source.ErrBadExtension, inputPath, source.ExtGeometry)
	}
	if outputPath == "" {
		outputPath = strings.TrimSuffix(inputPath, ext) + source.ExtIndex
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("%w: %s", source.ErrFileNotFound, inputPath)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat input file: %w", err)
	}

	rd := binary.NewReader(f, stat.Size())
	header, err := rd.ReadHeader()
	if err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}
	entries, err := rd.Scan()
	if err != nil {
		if len(entries) == 0 {
			return fmt.Errorf("%s: %w", inputPath, err)
		}
		lg.WithError(err).WithField("records", len(entries)).Warn("record walk stopped early")
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := binary.WriteIndex(out, header, entries); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", outputPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d record(s) into %s\n", len(entries), outputPath)
	return nil
}
