package results_test

import (
	"compress/gzip"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-lab/go/testingx"

	"github.com/voiceops/streamprobe/probe"
	"github.com/voiceops/streamprobe/results"
)

func archiveDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "results-*")
	testingx.Must(t, err, "failed to create temp dir")
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func findOne(t *testing.T, dir string) string {
	var files []string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, p)
		}
		return err
	})
	testingx.Must(t, err, "failed to walk %s", dir)
	if len(files) != 1 {
		t.Fatalf("files in %s: got %d, want 1", dir, len(files))
	}
	return files[0]
}

func testVerdict() probe.Verdict {
	return probe.Verdict{
		SchemaVersion: probe.CurrentSchemaVersion,
		UUID:          "test-uuid-1234",
		Endpoint:      "wss://example.org/stream/v1/media",
		Opened:        true,
		Success:       true,
		CloseCode:     1000,
		CloseReason:   "Test complete",
		MessageCount:  7,
	}
}

func TestWriteRecordPlain(t *testing.T) {
	dir := archiveDir(t)
	v := testVerdict()
	fp, err := results.NewFile(v.UUID, dir, "streamprobe", false)
	testingx.Must(t, err, "failed to create results file")
	testingx.Must(t, fp.WriteRecord(&v), "failed to write record")
	testingx.Must(t, fp.Close(), "failed to close results file")

	name := findOne(t, dir)
	base := filepath.Base(name)
	if !strings.HasPrefix(base, "streamprobe-") {
		t.Errorf("file name %q does not carry the program prefix", base)
	}
	if !strings.HasSuffix(base, "."+v.UUID+".json") {
		t.Errorf("file name %q does not carry the uuid and extension", base)
	}
	data, err := ioutil.ReadFile(name)
	testingx.Must(t, err, "failed to read %s", name)
	var got probe.Verdict
	testingx.Must(t, json.Unmarshal(data, &got), "failed to parse %s", name)
	if got.UUID != v.UUID || got.CloseCode != v.CloseCode ||
		got.MessageCount != v.MessageCount || !got.Success {
		t.Errorf("got %+v, want %+v", got, v)
	}
}

func TestWriteRecordGzip(t *testing.T) {
	dir := archiveDir(t)
	v := testVerdict()
	fp, err := results.NewFile(v.UUID, dir, "streamprobe", true)
	testingx.Must(t, err, "failed to create results file")
	testingx.Must(t, fp.WriteRecord(&v), "failed to write record")
	testingx.Must(t, fp.Close(), "failed to close results file")

	name := findOne(t, dir)
	if !strings.HasSuffix(name, ".json.gz") {
		t.Errorf("file name %q does not carry the compressed extension", name)
	}
	raw, err := os.Open(name)
	testingx.Must(t, err, "failed to open %s", name)
	defer raw.Close()
	gz, err := gzip.NewReader(raw)
	testingx.Must(t, err, "failed to start decompressing %s", name)
	data, err := ioutil.ReadAll(gz)
	testingx.Must(t, err, "failed to decompress %s", name)
	var got probe.Verdict
	testingx.Must(t, json.Unmarshal(data, &got), "failed to parse %s", name)
	if got.UUID != v.UUID || got.Endpoint != v.Endpoint {
		t.Errorf("got %+v, want %+v", got, v)
	}
}

func TestNewFileBadDatadir(t *testing.T) {
	dir := archiveDir(t)
	blocker := filepath.Join(dir, "blocker")
	testingx.Must(t, ioutil.WriteFile(blocker, []byte("x"), 0644), "failed to write blocker")
	if _, err := results.NewFile("uuid", blocker, "streamprobe", false); err == nil {
		t.Error("expected an error when datadir is a regular file")
	}
}
