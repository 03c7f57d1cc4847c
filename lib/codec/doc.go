// Package codec reads and writes the metadata file of a layer.
//
// Disk Layout:
//
//	<root>/
//	├── <filtered layer name>/
//	│   ├── metadata.properties.gz   (current format, gzip compressed)
//	│   ├── metadata.properties      (legacy format, uncompressed, read only)
//
// Both files hold properties text (UTF-8, '#' and '!' comments, key=value or key:value
// pairs, backslash escapes). Values are stored exactly as given, the file store
// percent-encodes them before they reach the codec.
//
// Reads prefer the compressed file and fall back to the legacy file. Writes always go to
// the compressed file, so a layer read from the legacy file is migrated the first time it
// is written. The legacy file is never deleted.
//
// Files are overwritten in place, there is no temporary file and rename. A crash during a
// write can leave a truncated file which is reported as malformed on the next load.
package codec
