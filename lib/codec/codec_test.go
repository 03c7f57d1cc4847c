package codec

import (
	"bytes"
	"errors"
	"github.com/ValentinKolb/lmstore/lib/store"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"io"
	"os"
	"strings"
	"testing"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// faultyFs wraps an afero.Fs and fails selected operations
type faultyFs struct {
	afero.Fs
	openErr     error
	openFileErr error
}

func (f *faultyFs) Open(name string) (afero.File, error) {
	if f.openErr != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: f.openErr}
	}
	return f.Fs.Open(name)
}

func (f *faultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if f.openFileErr != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: f.openFileErr}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func readGzip(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("%s is not gzip compressed: %v", path, err)
	}
	content, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("failed to decompress %s: %v", path, err)
	}
	return string(content)
}

func requireCode(t *testing.T, err error, code store.RetCode) {
	t.Helper()
	if !store.IsCode(err, code) {
		t.Fatalf("expected error with code %s, got %v", code, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func TestLoadMissing(t *testing.T) {
	c := NewFileCodec(afero.NewMemMapFs(), nil)

	data, err := c.Load("topp:states")
	if err != nil {
		t.Fatalf("Load() of a missing layer returned error: %v", err)
	}
	if data == nil || len(data) != 0 {
		t.Errorf("expected empty non-nil map, got %v", data)
	}
}

func TestStoreLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewFileCodec(fs, nil)

	data := map[string]string{
		"expirationRule": "3600",
		"last.truncate":  "%3D%0A%C3%BC",
		"key with space": "v",
		"a=b:c":          "x",
		"#not a comment": "y",
		"!bang":          "z",
		"path\\like":     "w",
		"ключ":           "значение",
		"tab\tkey":       "leading",
		"empty":          "",
		" lead":          "1",
		"\f":             "2",
		"k\\":            "3",
		"\u0001":         "4",
		"\t\n":           "5",
		"\u2028":         "6",
		"\u0085":         "7",
		"é日本":            "8",
	}

	if err := c.Store("topp:states", data); err != nil {
		t.Fatalf("Store() returned error: %v", err)
	}

	if exists, _ := afero.Exists(fs, c.CurrentPath("topp:states")); !exists {
		t.Fatalf("expected %s to exist", c.CurrentPath("topp:states"))
	}
	if exists, _ := afero.Exists(fs, c.LegacyPath("topp:states")); exists {
		t.Errorf("Store() must not create the legacy file")
	}

	loaded, err := c.Load("topp:states")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if len(loaded) != len(data) {
		t.Errorf("expected %d entries, got %d: %v", len(data), len(loaded), loaded)
	}
	for k, v := range data {
		if loaded[k] != v {
			t.Errorf("key %q: expected %q, got %q", k, v, loaded[k])
		}
	}
}

func TestStoreFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewFileCodec(fs, nil)

	if err := c.Store("layer", map[string]string{"b": "2", "a": "1"}); err != nil {
		t.Fatalf("Store() returned error: %v", err)
	}

	content := readGzip(t, fs, c.CurrentPath("layer"))
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), content)
	}
	if lines[0] != "#"+headerComment {
		t.Errorf("expected header comment, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "#") {
		t.Errorf("expected date comment, got %q", lines[1])
	}
	if lines[2] != "a=1" || lines[3] != "b=2" {
		t.Errorf("expected sorted key=value lines, got %q", lines[2:])
	}
}

func TestLegacyFallbackAndMigration(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewFileCodec(fs, nil)

	legacy := "#written by an old version\nk=v1\nother:2\n"
	if err := fs.MkdirAll(c.LayerDir("old"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, c.LegacyPath("old"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	path, compressed, err := c.Resolve("old")
	if err != nil || compressed || path != c.LegacyPath("old") {
		t.Fatalf("Resolve() = (%s, %v, %v), want legacy path", path, compressed, err)
	}

	data, err := c.Load("old")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if data["k"] != "v1" || data["other"] != "2" {
		t.Fatalf("unexpected legacy content: %v", data)
	}

	data["k"] = "v2"
	if err := c.Store("old", data); err != nil {
		t.Fatalf("Store() returned error: %v", err)
	}

	path, compressed, err = c.Resolve("old")
	if err != nil || !compressed || path != c.CurrentPath("old") {
		t.Fatalf("Resolve() = (%s, %v, %v), want current path", path, compressed, err)
	}

	migrated, err := c.Load("old")
	if err != nil {
		t.Fatalf("Load() after migration returned error: %v", err)
	}
	if migrated["k"] != "v2" || migrated["other"] != "2" {
		t.Errorf("unexpected migrated content: %v", migrated)
	}

	raw, err := afero.ReadFile(fs, c.LegacyPath("old"))
	if err != nil {
		t.Fatalf("legacy file must still exist: %v", err)
	}
	if string(raw) != legacy {
		t.Errorf("legacy file changed: %q", raw)
	}
}

func TestCurrentPreferredOverLegacy(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewFileCodec(fs, nil)

	if err := c.Store("both", map[string]string{"k": "current"}); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, c.LegacyPath("both"), []byte("k=legacy\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := c.Load("both")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if data["k"] != "current" {
		t.Errorf("expected value from compressed file, got %q", data["k"])
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(fs afero.Fs, c *FileCodec) afero.Fs
		code  store.RetCode
	}{
		{
			name: "current file is not gzip",
			setup: func(fs afero.Fs, c *FileCodec) afero.Fs {
				_ = afero.WriteFile(fs, c.CurrentPath("l"), []byte("k=v\n"), 0o644)
				return fs
			},
			code: store.RetCLoadMalformed,
		},
		{
			name: "current file is truncated",
			setup: func(fs afero.Fs, c *FileCodec) afero.Fs {
				_ = c.Store("l", map[string]string{"k": strings.Repeat("v", 4096)})
				raw, _ := afero.ReadFile(fs, c.CurrentPath("l"))
				_ = afero.WriteFile(fs, c.CurrentPath("l"), raw[:len(raw)/2], 0o644)
				return fs
			},
			code: store.RetCLoadMalformed,
		},
		{
			name: "invalid properties syntax",
			setup: func(fs afero.Fs, c *FileCodec) afero.Fs {
				_ = afero.WriteFile(fs, c.LegacyPath("l"), []byte("k=\\uZZZZ\n"), 0o644)
				return fs
			},
			code: store.RetCLoadMalformed,
		},
		{
			name: "file cannot be opened",
			setup: func(fs afero.Fs, c *FileCodec) afero.Fs {
				_ = afero.WriteFile(fs, c.LegacyPath("l"), []byte("k=v\n"), 0o644)
				return &faultyFs{Fs: fs, openErr: os.ErrPermission}
			},
			code: store.RetCLoadIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := afero.NewMemMapFs()
			fs := tt.setup(mem, NewFileCodec(mem, nil))

			_, err := NewFileCodec(fs, nil).Load("l")
			requireCode(t, err, tt.code)

			if errors.Unwrap(err) == nil {
				t.Errorf("expected the cause to be preserved")
			}
		})
	}
}

func TestStoreErrors(t *testing.T) {
	t.Run("directory cannot be created", func(t *testing.T) {
		c := NewFileCodec(afero.NewReadOnlyFs(afero.NewMemMapFs()), nil)
		requireCode(t, c.Store("l", map[string]string{"k": "v"}), store.RetCDirectory)
	})

	t.Run("empty key", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		c := NewFileCodec(fs, nil)
		if err := c.Store("l", map[string]string{"k": "v"}); err != nil {
			t.Fatalf("Store() returned error: %v", err)
		}

		requireCode(t, c.Store("l", map[string]string{"k": "v2", "": "x"}), store.RetCEncode)

		// the file written before is untouched
		loaded, err := c.Load("l")
		if err != nil {
			t.Fatalf("Load() returned error: %v", err)
		}
		if len(loaded) != 1 || loaded["k"] != "v" {
			t.Errorf("expected the previous content, got %v", loaded)
		}
	})

	t.Run("file cannot be written", func(t *testing.T) {
		c := NewFileCodec(&faultyFs{Fs: afero.NewMemMapFs(), openFileErr: os.ErrPermission}, nil)
		err := c.Store("l", map[string]string{"k": "v"})
		requireCode(t, err, store.RetCWriteIO)
		if !errors.Is(err, os.ErrPermission) {
			t.Errorf("expected cause os.ErrPermission, got %v", err)
		}
	})
}

func TestCustomFilter(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewFileCodec(fs, func(layer string) string { return "x-" + layer })

	if err := c.Store("l", map[string]string{"k": "v"}); err != nil {
		t.Fatal(err)
	}
	if exists, _ := afero.Exists(fs, "x-l/"+CurrentFilename); !exists {
		t.Errorf("expected the filter to choose the layer directory")
	}
}

func TestEscapeProperty(t *testing.T) {
	tests := []struct {
		in     string
		isKey  bool
		expect string
	}{
		{in: "plain", isKey: true, expect: "plain"},
		{in: "a b", isKey: true, expect: `a\ b`},
		{in: "a b", isKey: false, expect: "a b"},
		{in: " lead", isKey: false, expect: `\ lead`},
		{in: "k=v:w", isKey: true, expect: `k\=v\:w`},
		{in: "#!", isKey: false, expect: `\#\!`},
		{in: "line\nbreak", isKey: false, expect: `line\nbreak`},
		{in: "back\\slash", isKey: false, expect: `back\\slash`},
		{in: "\x01", isKey: false, expect: `\u0001`},
		{in: "ü", isKey: false, expect: "ü"},
	}

	for _, tt := range tests {
		if got := escapeProperty(tt.in, tt.isKey); got != tt.expect {
			t.Errorf("escapeProperty(%q, %v) = %q, want %q", tt.in, tt.isKey, got, tt.expect)
		}
	}
}
