package services

import (
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNoStatisticsFile is returned for archives without a STATPOP table.
var ErrNoStatisticsFile = errors.New("archive does not contain file STATPOP20??G.csv")

// The hectare table inside the archives published by bfs.admin.ch.
var statPopEntry = regexp.MustCompile(`STATPOP20[0-9]{2}G\.csv$`)

// closeAll closes in order, innermost stream first.
func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error { return closeAll(m.closers) }

// OpenInput opens a statistics table. Paths ending in .zip are read as
// STATPOP archives, paths ending in .gz are decompressed, and "-" reads
// standard input.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		archive, err := zip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("error opening archive: %w", err)
		}
		for _, file := range archive.File {
			if !statPopEntry.MatchString(file.Name) {
				continue
			}
			entry, err := file.Open()
			if err != nil {
				archive.Close()
				return nil, fmt.Errorf("error opening %s in archive: %w", file.Name, err)
			}
			return &multiCloser{Reader: entry, closers: []io.Closer{entry, archive}}, nil
		}
		archive.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNoStatisticsFile)

	case ".gz":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("error opening input file: %w", err)
		}
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("error reading gzip input: %w", err)
		}
		return &multiCloser{Reader: gz, closers: []io.Closer{gz, file}}, nil

	default:
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("error opening input file: %w", err)
		}
		return file, nil
	}
}

// Output is a converted file being written. Data goes to a temporary
// file next to the target, which replaces the target only on Commit.
// Closing an uncommitted Output discards what was written.
type Output struct {
	io.Writer
	path string
	file *os.File
	gz   *gzip.Writer
	done bool
}

// CreateOutput starts writing the converted file. Paths ending in .gz are
// compressed, "-" writes to standard output.
func CreateOutput(path string) (*Output, error) {
	if path == "-" {
		return &Output{Writer: os.Stdout, path: path}, nil
	}

	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("error creating output file: %w", err)
	}
	out := &Output{Writer: file, path: path, file: file}
	if strings.EqualFold(filepath.Ext(path), ".gz") {
		out.gz = gzip.NewWriter(file)
		out.gz.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		out.Writer = out.gz
	}
	return out, nil
}

// Commit flushes the output and moves it to its target path.
func (o *Output) Commit() error {
	if o.done {
		return errors.New("output already closed")
	}
	o.done = true
	if o.file == nil {
		return nil
	}

	var closers []io.Closer
	if o.gz != nil {
		closers = append(closers, o.gz)
	}
	closers = append(closers, o.file)
	if err := closeAll(closers); err != nil {
		os.Remove(o.file.Name())
		return fmt.Errorf("error writing output file: %w", err)
	}
	if err := os.Chmod(o.file.Name(), 0o644); err != nil {
		os.Remove(o.file.Name())
		return fmt.Errorf("error writing output file: %w", err)
	}
	if err := os.Rename(o.file.Name(), o.path); err != nil {
		os.Remove(o.file.Name())
		return fmt.Errorf("error moving output file into place: %w", err)
	}
	return nil
}

// Close discards the output unless it was committed.
func (o *Output) Close() error {
	if o.done || o.file == nil {
		o.done = true
		return nil
	}
	o.done = true
	o.file.Close()
	return os.Remove(o.file.Name())
}
