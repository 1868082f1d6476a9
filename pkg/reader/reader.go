// Package reader infers PSM file types and dispatches to the per-format readers
package reader

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ChrisMcGann/ms2rescore/pkg/core"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader/msms"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader/mzid"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader/pin"
	"github.com/ChrisMcGann/ms2rescore/pkg/reader/tsv"
)

// Supported PSM file types
const (
	FileTypeInfer      = "infer"
	FileTypeTSV        = "tsv"
	FileTypePercolator = "percolator"
	FileTypeMzid       = "mzid"
	FileTypeMaxQuant   = "msms"
)

// FileTypes lists the explicit file types accepted by Read
var FileTypes = []string{FileTypeTSV, FileTypePercolator, FileTypeMzid, FileTypeMaxQuant}

// psmReader is the streaming shape shared by the per-format readers
type psmReader interface {
	Next() bool
	PSM() *core.PSM
	Err() error
}

// InferFileType resolves a file type from the file name. Returns "" when the
// name matches no known format.
func InferFileType(path string) string {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")
	switch {
	case name == "msms.txt" || strings.HasSuffix(name, "_msms.txt"):
		return FileTypeMaxQuant
	case strings.HasSuffix(name, ".pin"):
		return FileTypePercolator
	case strings.HasSuffix(name, ".mzid"):
		return FileTypeMzid
	case strings.HasSuffix(name, ".tsv"):
		return FileTypeTSV
	}
	return ""
}

// Open opens path for reading, decompressing it when it ends in .gz
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, &core.MalformedInputError{Path: path, Err: err}
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.file.Close())
}

// Read reads all PSMs of a file. fileType is one of FileTypes or "infer".
func Read(path, fileType string) (*core.PSMList, error) {
	if fileType == "" || fileType == FileTypeInfer {
		fileType = InferFileType(path)
	}
	if !isKnown(fileType) {
		return nil, &core.UnsupportedFormatError{Path: path, FileType: fileType}
	}

	f, err := Open(path)
	if err != nil {
		return nil, &core.MalformedInputError{Path: path, Err: err}
	}
	defer f.Close()

	return ReadFrom(f, path, fileType)
}

// ReadFrom reads all PSMs of the given file type from r. path is used in errors.
func ReadFrom(r io.Reader, path, fileType string) (*core.PSMList, error) {
	var (
		rd  psmReader
		err error
	)
	switch fileType {
	case FileTypeTSV:
		rd, err = tsv.NewReader(r)
	case FileTypePercolator:
		rd, err = pin.NewReader(r)
	case FileTypeMzid:
		rd, err = mzid.NewReader(r)
	case FileTypeMaxQuant:
		rd, err = msms.NewReader(r)
	default:
		return nil, &core.UnsupportedFormatError{Path: path, FileType: fileType}
	}
	if err != nil {
		return nil, malformed(path, err)
	}

	var psms []*core.PSM
	for rd.Next() {
		psms = append(psms, rd.PSM())
	}
	if err := rd.Err(); err != nil {
		return nil, malformed(path, err)
	}
	return core.NewPSMList(psms), nil
}

func isKnown(fileType string) bool {
	for _, t := range FileTypes {
		if t == fileType {
			return true
		}
	}
	return false
}

// malformed wraps a reader error, lifting a leading "line N: " into the
// error's Line field.
func malformed(path string, err error) error {
	if rest, ok := strings.CutPrefix(err.Error(), "line "); ok {
		if num, tail, ok := strings.Cut(rest, ": "); ok {
			if line, convErr := strconv.Atoi(num); convErr == nil {
				return &core.MalformedInputError{Path: path, Line: line, Err: errors.New(tail)}
			}
		}
	}
	return &core.MalformedInputError{Path: path, Err: err}
}
