// Package importer drives a shapefile import into a drawing: it decodes
// the geometry records and their attribute rows, resolves styles, maps the
// records to entities and inserts them in record order.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dyuri/shpimport/internal/binary"
	"github.com/dyuri/shpimport/internal/dbf"
	"github.com/dyuri/shpimport/internal/drawing"
	"github.com/dyuri/shpimport/internal/logger"
	"github.com/dyuri/shpimport/internal/mapper"
	"github.com/dyuri/shpimport/internal/metrics"
	"github.com/dyuri/shpimport/internal/model"
	"github.com/dyuri/shpimport/internal/source"
	"github.com/dyuri/shpimport/internal/style"
)

// DefaultQueueSize is the decoded record buffer used when Options.QueueSize is unset
const DefaultQueueSize = 64

// Options configure an import
type Options struct {
	Style   style.Config
	Mapping mapper.Options
	// Layer is the fallback destination layer; empty means the document's
	// current layer
	Layer string
	// Encoding names the attribute text encoding, overriding the .cpg file
	// and the table's language driver
	Encoding  string
	QueueSize int

	Logger  log.FieldLogger
	Metrics *metrics.ImportCollector
}

// item is one processed record handed from the decoder to the inserter
type item struct {
	index    int
	layer    string
	entities []drawing.Entity
	warnings []error
	skipped  bool
}

// Import reads the set and inserts its entities into doc. Errors in the
// file header, the attribute table or the destination abort the import
// and are returned together with the partial result. Record and property
// errors become warnings in the result. Cancelling ctx stops the import
// between records with StatusCanceled.
func Import(ctx context.Context, set *source.Set, doc drawing.Document, opts Options) (*Result, error) {
	start := time.Now()
	res := newResult(set.Name)
	lg := opts.Logger
	if lg == nil {
		lg = logger.Discard()
	}
	lg = lg.WithField("file", set.Name)
	defer opts.Metrics.Observe(start)

	fail := func(err error) (*Result, error) {
		res.Status = StatusFailed
		res.Elapsed = time.Since(start)
		lg.WithError(err).Error("import failed")
		return res, err
	}

	rd := binary.NewReader(set.Geometry.Data, set.Geometry.Size)
	header, err := rd.ReadHeader()
	if err != nil {
		return fail(fmt.Errorf("%s: %w", set.Geometry.Name, err))
	}
	lg.WithFields(log.Fields{"shape_type": header.ShapeType, "length": header.FileLength}).Debug("header read")

	if set.Index != nil {
		useIndex(rd, *set.Index, lg)
	}

	table, warnings, err := OpenTable(set, opts.Encoding)
	if err != nil {
		return fail(err)
	}
	for _, w := range warnings {
		res.warn(TableLevel, w, lg, opts.Metrics)
	}

	mismatchChecked := false
	if rd.Indexed() {
		mismatchChecked = true
		if table.NumRecords() != rd.NumRecords() {
			res.warn(TableLevel, mismatch(rd.NumRecords(), table.NumRecords()), lg, opts.Metrics)
		}
	}

	layer, attrs := doc.Defaults()
	if opts.Layer != "" {
		layer = opts.Layer
	}
	resolver := style.NewResolver(opts.Style, style.Defaults{
		Layer:    layer,
		Color:    attrs.Color,
		LineType: attrs.LineType,
		Width:    attrs.Width,
	})

	queue := opts.QueueSize
	if queue <= 0 {
		queue = DefaultQueueSize
	}
	items := make(chan item, queue)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(items)
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := rd.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if rec == nil {
				return err
			}
			it := process(rec, err, table, resolver, opts.Mapping)
			select {
			case items <- it:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		ensured := make(map[string]bool)
		for it := range items {
			res.Records++
			opts.Metrics.Record()
			rlg := lg.WithField("record", it.index)
			for _, w := range it.warnings {
				res.warn(it.index, w, rlg, opts.Metrics)
			}
			if len(it.warnings) > 0 {
				res.Warned++
			}
			if it.skipped {
				res.Skipped++
				opts.Metrics.Skip()
				continue
			}

			if !ensured[it.layer] {
				if err := doc.EnsureLayer(it.layer); err != nil {
					return fmt.Errorf("create layer %q: %w", it.layer, err)
				}
				ensured[it.layer] = true
			}
			for _, e := range it.entities {
				if _, err := doc.Insert(it.layer, e); err != nil {
					return fmt.Errorf("insert record %d: %w", it.index, err)
				}
				res.Entities++
				res.ByKind[e.Kind]++
				opts.Metrics.Entity(e.Kind.String())
			}
			rlg.WithField("entities", len(it.entities)).Debug("record imported")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			res.Status = StatusCanceled
			res.Elapsed = time.Since(start)
			lg.WithField("records", res.Records).Warn("import canceled")
			return res, ctx.Err()
		}
		return fail(err)
	}

	if err := rd.Trailer(); err != nil {
		res.warn(TableLevel, err, lg, opts.Metrics)
	}
	if !mismatchChecked && res.Records != table.NumRecords() {
		res.warn(TableLevel, mismatch(res.Records, table.NumRecords()), lg, opts.Metrics)
	}

	res.Status = StatusSucceeded
	res.Elapsed = time.Since(start)
	lg.WithFields(log.Fields{
		"records":  res.Records,
		"entities": res.Entities,
		"skipped":  res.Skipped,
		"warned":   res.Warned,
	}).Info("import finished")
	return res, nil
}

func (r *Result) warn(record int, err error, lg log.FieldLogger, m *metrics.ImportCollector) {
	w := Warning{Record: record, Err: err}
	r.Warnings = append(r.Warnings, w)
	m.Warning(w.Kind())
	lg.WithError(err).Warn("import warning")
}

func mismatch(records, rows int) error {
	return fmt.Errorf("%w: %d geometry records, %d attribute rows", ErrAttributeCountMismatch, records, rows)
}

// useIndex switches rd to the index when it is readable and matches the
// main file; otherwise records are walked sequentially
func useIndex(rd *binary.Reader, f source.File, lg log.FieldLogger) {
	if err := rd.LoadIndex(f.Data, f.Size); err != nil {
		lg.WithError(err).Info("index ignored, reading records sequentially")
		return
	}
	lg.WithField("records", rd.NumRecords()).Debug("using index")
}

// OpenTable opens the attribute table with the configured encoding, the
// .cpg encoding or the language driver encoding, in that order. An
// unusable .cpg is reported as a warning.
func OpenTable(set *source.Set, name string) (*dbf.Reader, []error, error) {
	var opts []dbf.Option
	var warnings []error
	switch {
	case name != "":
		enc, err := dbf.EncodingByName(name)
		if err != nil {
			return nil, nil, fmt.Errorf("attribute encoding: %w", err)
		}
		opts = append(opts, dbf.WithEncoding(enc))
	case set.CodePage != "":
		enc, err := dbf.EncodingByName(set.CodePage)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("code page file ignored: %w", err))
		} else {
			opts = append(opts, dbf.WithEncoding(enc))
		}
	}

	table, err := dbf.NewReader(set.Table.Data, set.Table.Size, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", set.Table.Name, err)
	}
	return table, warnings, nil
}

// process turns one decoded record into an item. recErr is the record-level
// error returned by the reader, if any.
func process(rec *binary.Record, recErr error, table *dbf.Reader, resolver *style.Resolver, mopts mapper.Options) item {
	it := item{index: rec.Index}
	if recErr != nil {
		it.warnings = append(it.warnings, recErr)
		it.skipped = true
		return it
	}
	it.warnings = append(it.warnings, rec.Warnings...)
	if mapper.Skipped(rec.Geometry) {
		it.skipped = true
		return it
	}

	var row *model.AttributeRow
	beyond := rec.Index >= table.NumRecords()
	if !beyond {
		var err error
		row, _, err = table.Row(rec.Index)
		if err != nil {
			it.warnings = append(it.warnings, fmt.Errorf("attribute row: %w", err))
			row = nil
		}
	}
	if row == nil {
		row = model.NewAttributeRow(0)
	}

	st, errs := resolver.Resolve(row)
	if !beyond {
		// rows past the table end are covered by the count mismatch warning
		it.warnings = append(it.warnings, errs...)
	}

	entities, err := mapper.Map(rec.Geometry, st, mopts)
	if err != nil {
		it.warnings = append(it.warnings, err)
		it.skipped = true
		return it
	}
	for i := range entities {
		entities[i].Record = rec.Index
	}
	it.layer = st.Layer
	it.entities = entities
	if len(entities) == 0 {
		it.skipped = true
	}
	return it
}
