package codec

import (
	"fmt"
	"github.com/ValentinKolb/lmstore/lib/common"
	"github.com/ValentinKolb/lmstore/lib/store"
	"github.com/ValentinKolb/lmstore/lib/util"
	"github.com/klauspost/compress/gzip"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"io"
	"os"
	"path/filepath"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// LegacyFilename is the uncompressed metadata file. It is only ever read.
	LegacyFilename = "metadata.properties"
	// GzipExtension is appended to the legacy name to get the current file name
	GzipExtension = ".gz"
	// CurrentFilename is the gzip compressed metadata file. All writes go here.
	CurrentFilename = LegacyFilename + GzipExtension

	dirPerm  = 0o755
	filePerm = 0o644
)

var log = logger.GetLogger(common.LoggerCodec)

// --------------------------------------------------------------------------
// File Codec
// --------------------------------------------------------------------------

// FileCodec reads and writes the metadata file of a layer.
// All paths are relative to the root of fs, each layer lives in its own directory
// named by the layer name filter.
//
// Thread-safety: Load and Resolve may be called concurrently. Store must not be called
// concurrently for the same layer, the file store serializes all writes in its flusher.
type FileCodec struct {
	fs     afero.Fs
	filter util.LayerNameFilter
	now    func() time.Time
}

// NewFileCodec creates a codec working on fs. If filter is nil util.FilterLayerName is used.
func NewFileCodec(fs afero.Fs, filter util.LayerNameFilter) *FileCodec {
	if filter == nil {
		filter = util.FilterLayerName
	}
	return &FileCodec{
		fs:     fs,
		filter: filter,
		now:    time.Now,
	}
}

// LayerDir returns the directory of a layer relative to the root
func (c *FileCodec) LayerDir(layer string) string {
	return c.filter(layer)
}

// CurrentPath returns the path of the compressed metadata file of a layer
func (c *FileCodec) CurrentPath(layer string) string {
	return filepath.Join(c.LayerDir(layer), CurrentFilename)
}

// LegacyPath returns the path of the uncompressed metadata file of a layer
func (c *FileCodec) LegacyPath(layer string) string {
	return filepath.Join(c.LayerDir(layer), LegacyFilename)
}

// Resolve returns the file a layer is read from: the compressed file if it exists,
// otherwise the legacy file. The returned legacy file does not need to exist.
func (c *FileCodec) Resolve(layer string) (path string, compressed bool, err error) {
	current := c.CurrentPath(layer)

	exists, err := afero.Exists(c.fs, current)
	if err != nil {
		return "", false, store.WrapError(store.RetCLoadIO, errors.Wrapf(err, "stat %s", current), fmt.Sprintf("failed to resolve metadata file of layer %s", layer))
	}
	if exists {
		return current, true, nil
	}

	// Fallback to legacy metadata in case the current file is not found
	return c.LegacyPath(layer), false, nil
}

// Load reads the metadata of a layer.
// A layer without any metadata file yields an empty map and no error.
//
// Errors:
//   - store.RetCLoadIO: the file exists but could not be opened or read
//   - store.RetCLoadMalformed: the file content is not a valid (compressed) properties file
func (c *FileCodec) Load(layer string) (map[string]string, error) {
	path, compressed, err := c.Resolve(layer)
	if err != nil {
		return nil, err
	}

	f, err := c.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, store.WrapError(store.RetCLoadIO, errors.Wrapf(err, "open %s", path), fmt.Sprintf("failed to open metadata of layer %s", layer))
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, readError(layer, path, err)
		}
		defer gz.Close()
		r = gz
	}

	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, readError(layer, path, err)
	}

	data, err := decodeProperties(buf)
	if err != nil {
		return nil, store.WrapError(store.RetCLoadMalformed, errors.Wrapf(err, "parse %s", path), fmt.Sprintf("malformed metadata of layer %s", layer))
	}

	log.Debugf("loaded %d entries of layer %s from %s", len(data), layer, path)
	return data, nil
}

// readError classifies an error returned while reading a metadata file.
// Broken or truncated gzip streams are malformed files, everything else is an I/O error.
func readError(layer, path string, err error) error {
	cause := errors.Wrapf(err, "read %s", path)

	switch errors.Cause(err) {
	case gzip.ErrHeader, gzip.ErrChecksum, io.ErrUnexpectedEOF, io.EOF:
		return store.WrapError(store.RetCLoadMalformed, cause, fmt.Sprintf("corrupt metadata file of layer %s", layer))
	default:
		return store.WrapError(store.RetCLoadIO, cause, fmt.Sprintf("failed to read metadata of layer %s", layer))
	}
}

// Store writes the metadata of a layer to the compressed file, independent of the
// file it was loaded from. The parent directory is created if needed. The file is
// truncated and overwritten in place. The legacy file is never touched.
//
// Errors:
//   - store.RetCDirectory: the layer directory could not be created
//   - store.RetCWriteIO: the file could not be written
func (c *FileCodec) Store(layer string, data map[string]string) error {
	// "=v" is not a valid line, the file could not be loaded again
	if _, ok := data[""]; ok {
		return store.NewError(store.RetCEncode, fmt.Sprintf("layer %s contains an empty key", layer))
	}

	dir := c.LayerDir(layer)
	if err := c.fs.MkdirAll(dir, dirPerm); err != nil {
		return store.WrapError(store.RetCDirectory, errors.Wrapf(err, "mkdir %s", dir), fmt.Sprintf("unable to create directory of layer %s", layer))
	}

	path := filepath.Join(dir, CurrentFilename)
	f, err := c.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return store.WrapError(store.RetCWriteIO, errors.Wrapf(err, "create %s", path), fmt.Sprintf("failed to write metadata of layer %s", layer))
	}

	gz := gzip.NewWriter(f)
	werr := encodeProperties(gz, data, c.now())
	if err := gz.Close(); werr == nil {
		werr = err
	}
	if err := f.Close(); werr == nil {
		werr = err
	}
	if werr != nil {
		return store.WrapError(store.RetCWriteIO, errors.Wrapf(werr, "write %s", path), fmt.Sprintf("failed to write metadata of layer %s", layer))
	}

	log.Debugf("stored %d entries of layer %s to %s", len(data), layer, path)
	return nil
}
