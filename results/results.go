// Package results saves archival records of probe runs and sink sessions.
package results

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path"
	"time"

	"github.com/voiceops/streamprobe/logging"
)

// File is the file where we save one archival record.
type File struct {
	// Writer is the writer for the record.
	Writer io.Writer

	// UUID is the UUID of the run being archived.
	UUID string

	// fp is the underlying file.
	fp *os.File

	// gzip is an optional writer for compressed records.
	gzip *gzip.Writer
}

// newFile opens an archival file under datadir on success and returns an
// error on failure. The what argument names the program writing the
// record and becomes both a subdirectory and the file prefix.
func newFile(datadir, what, uuid string, compress bool) (*File, error) {
	timestamp := time.Now().UTC()
	dir := path.Join(datadir, what, timestamp.Format("2006/01/02"))
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	name := dir + "/" + what + "-" + timestamp.Format("20060102T150405.000000000Z") + "." + uuid + ".json"
	if compress {
		name += ".gz"
	}
	// Nanosecond timestamps plus the run UUID make collisions unlikely.
	// If that assumption ever breaks, O_EXCL will let us know.
	fp, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	if !compress {
		return &File{
			Writer: fp,
			UUID:   uuid,
			fp:     fp,
		}, nil
	}
	writer, err := gzip.NewWriterLevel(fp, gzip.BestSpeed)
	if err != nil {
		fp.Close()
		return nil, err
	}
	return &File{
		Writer: writer,
		UUID:   uuid,
		fp:     fp,
		gzip:   writer,
	}, nil
}

// NewFile creates a file for saving one archival record in datadir, named
// after the run's uuid and the program kind given in what. Returns the
// open file on success and an error in case of failure.
func NewFile(uuid, datadir, what string, compress bool) (*File, error) {
	fp, err := newFile(datadir, what, uuid, compress)
	if err != nil {
		logging.Logger.WithError(err).Warn("results: newFile failed")
		return nil, err
	}
	return fp, nil
}

// Close closes the archival file.
func (fp *File) Close() error {
	if fp.gzip != nil {
		err := fp.gzip.Close()
		if err != nil {
			fp.fp.Close()
			return err
		}
	}
	return fp.fp.Close()
}

// WriteRecord serializes |record| as JSON.
func (fp *File) WriteRecord(record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = fp.Writer.Write(data)
	return err
}
