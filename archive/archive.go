// Package archive turns a directory tree into a compressed payload and back.
//
// Payloads are tar streams compressed with gzip. Entry paths are relative,
// slash separated and sorted; headers are normalized (zero owner, fixed
// modification time) so packing the same tree twice yields the same bytes.
package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

var (
	// ErrUnsafePath is returned by [Unpack] for entries that would land
	// outside the destination directory.
	ErrUnsafePath = errors.New("unsafe entry path")

	// ErrUnsupportedEntry is returned by [Unpack] for entries that are
	// neither directories nor regular files.
	ErrUnsupportedEntry = errors.New("unsupported entry type")
)

var epoch = time.Unix(0, 0).UTC()

type options struct {
	level  int
	logger *slog.Logger
}

// Option configures [Pack].
type Option func(*options)

// WithCompressionLevel sets the gzip level, from [gzip.HuffmanOnly] to
// [gzip.BestCompression]. The default is best compression.
func WithCompressionLevel(level int) Option {
	return func(o *options) { o.level = level }
}

// WithLogger sets an optional [*slog.Logger].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Pack archives every directory and regular file below root, hidden entries
// included. Symlinks and special files are skipped.
func Pack(root string, opts ...Option) ([]byte, error) {
	o := options{level: gzip.BestCompression}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pack %s: not a directory", root)
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, o.level)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", root, err)
	}
	tw := tar.NewWriter(gz)

	entries := 0
	// WalkDir visits entries in lexical order.
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			entries++
			return writeDir(tw, name, d)
		case d.Type().IsRegular():
			entries++
			return writeFile(tw, name, p, d)
		default:
			if o.logger != nil {
				o.logger.Debug("skipping non-regular entry", "path", name, "type", d.Type().String())
			}

			return nil
		}
	})
	if err != nil {
		_ = tw.Close()
		_ = gz.Close()

		return nil, fmt.Errorf("pack %s: %w", root, err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("pack %s: %w", root, err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("pack %s: %w", root, err)
	}

	if o.logger != nil {
		o.logger.Debug("directory packed", "root", root, "entries", entries, "bytes", buf.Len(), "level", o.level)
	}

	return buf.Bytes(), nil
}

func writeDir(tw *tar.Writer, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	return tw.WriteHeader(&tar.Header{
		Name:     name + "/",
		Mode:     int64(info.Mode().Perm()),
		ModTime:  epoch,
		Typeflag: tar.TypeDir,
	})
}

func writeFile(tw *tar.Writer, name, p string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
	}); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)

	return err
}

// Unpack extracts payload into dest, creating dest if needed. It fails with
// [ErrUnsafePath] on absolute or escaping entry paths and with
// [ErrUnsupportedEntry] on links and special files.
func Unpack(payload []byte, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("unpack: %w", err)
	}

	return walk(payload, func(hdr *tar.Header, name string, r io.Reader) error {
		target := filepath.Join(dest, filepath.FromSlash(name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, dirMode(hdr))
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}

			return extractFile(target, fileMode(hdr), r)
		default:
			return fmt.Errorf("%w: %q (type %q)", ErrUnsupportedEntry, hdr.Name, hdr.Typeflag)
		}
	})
}

func extractFile(target string, mode os.FileMode, r io.Reader) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}

func dirMode(hdr *tar.Header) os.FileMode {
	if m := os.FileMode(hdr.Mode).Perm(); m != 0 {
		return m | 0o700
	}

	return 0o755
}

func fileMode(hdr *tar.Header) os.FileMode {
	if m := os.FileMode(hdr.Mode).Perm(); m != 0 {
		return m | 0o600
	}

	return 0o644
}

// walk decompresses payload and calls fn for each entry with its cleaned,
// validated path.
func walk(payload []byte, fn func(hdr *tar.Header, name string, r io.Reader) error) error {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("open payload: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}

		name, err := cleanEntryPath(hdr.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}

		if err := fn(hdr, name, tr); err != nil {
			return fmt.Errorf("entry %s: %w", name, err)
		}
	}
}

// cleanEntryPath returns the slash-separated relative form of an entry name,
// rejecting anything that is absolute or climbs out of the archive root.
// The archive root itself ("./") cleans to the empty string.
func cleanEntryPath(name string) (string, error) {
	raw := strings.ReplaceAll(name, "\\", "/")
	if path.IsAbs(raw) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	cleaned := path.Clean(raw)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	return cleaned, nil
}
