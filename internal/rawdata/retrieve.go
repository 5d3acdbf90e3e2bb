// Package rawdata copies a subject's raw CTF recordings from the lab share
// into the dataset's sourcedata tree.
package rawdata

import (
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrAlreadyRetrieved is returned when the destination already holds recordings
var ErrAlreadyRetrieved = errors.New("MEG data already retrieved")

const (
	impedanceDir = "EEG"
	markerFile   = "MarkerFile.mrk"
)

// Options describes one subject's retrieval
type Options struct {
	MEGCode string // acquisition code from meg_key
	RawDir  string // <raw>/<subject name>, one directory per session date
	CTFDir  string // <ctf>/<pnum>/CTF, optional marked-up copies
	DestDir string // sourcedata/sub-<pnum>/ses-meg/meg
	Logger  *log.Logger
}

// Result lists what was placed under DestDir
type Result struct {
	Recordings   []string
	Impedance    []string
	Decompressed []string
	Markers      []string
}

func (o Options) recordingPattern() string {
	return o.MEGCode + "_epilepsy_????????_*.ds"
}

// Existing returns the recordings already under DestDir
func Existing(opts Options) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(opts.DestDir, opts.recordingPattern()))
	if err != nil {
		return nil, fmt.Errorf("failed to check destination: %w", err)
	}
	return matches, nil
}

// Retrieve copies every session's recordings and impedance checks, expands
// compressed .meg4 files and brings over marker files from the CTF copies.
func Retrieve(opts Options) (*Result, error) {
	if opts.MEGCode == "" {
		return nil, errors.New("MEG code is required")
	}

	existing, err := Existing(opts)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w in %s", ErrAlreadyRetrieved, opts.DestDir)
	}

	sessions, err := os.ReadDir(opts.RawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw directory: %w", err)
	}

	res := &Result{}
	for _, ses := range sessions {
		if !ses.IsDir() {
			continue
		}
		sesDir := filepath.Join(opts.RawDir, ses.Name())

		recs, err := copyMatches(sesDir, opts.recordingPattern(), opts.DestDir)
		if err != nil {
			return res, err
		}
		res.Recordings = append(res.Recordings, recs...)

		imps, err := copyMatches(sesDir, "*EEGImpedance*.ds", filepath.Join(opts.DestDir, impedanceDir))
		if err != nil {
			return res, err
		}
		res.Impedance = append(res.Impedance, imps...)

		if opts.Logger != nil {
			opts.Logger.Debug("copied session", "session", ses.Name(), "recordings", len(recs), "impedance", len(imps))
		}
	}

	if len(res.Recordings) == 0 {
		return res, fmt.Errorf("no %s recordings under %s", opts.MEGCode, opts.RawDir)
	}

	zipped, err := filepath.Glob(filepath.Join(opts.DestDir, "*.ds", "*.meg4.bz2"))
	if err != nil {
		return res, fmt.Errorf("failed to find compressed files: %w", err)
	}
	for _, z := range zipped {
		out, err := DecompressBzip2(z)
		if err != nil {
			return res, err
		}
		res.Decompressed = append(res.Decompressed, out)
	}

	markers, err := CopyMarkers(opts)
	if err != nil {
		return res, err
	}
	res.Markers = markers

	return res, nil
}

// CopyMarkers copies MarkerFile.mrk from <code>_epilepsy_*-c.ds directories
// into the matching recording under DestDir when it has none.
func CopyMarkers(opts Options) ([]string, error) {
	if opts.CTFDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(opts.CTFDir); err != nil {
		return nil, nil
	}

	sources, err := filepath.Glob(filepath.Join(opts.CTFDir, opts.MEGCode+"_epilepsy_*-c.ds", markerFile))
	if err != nil {
		return nil, fmt.Errorf("failed to find marker files: %w", err)
	}

	var copied []string
	for _, src := range sources {
		dsName := strings.TrimSuffix(filepath.Base(filepath.Dir(src)), "-c.ds") + ".ds"
		dsDir := filepath.Join(opts.DestDir, dsName)
		if info, err := os.Stat(dsDir); err != nil || !info.IsDir() {
			continue
		}
		dst := filepath.Join(dsDir, markerFile)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := copyFile(src, dst, 0644); err != nil {
			return copied, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

// DecompressBzip2 expands path and removes the .bz2 file, as bzip2 -d does
func DecompressBzip2(path string) (string, error) {
	if !strings.HasSuffix(path, ".bz2") {
		return "", fmt.Errorf("not a .bz2 file: %s", path)
	}
	outPath := strings.TrimSuffix(path, ".bz2")

	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	if _, err := io.Copy(out, bzip2.NewReader(in)); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", outPath, err)
	}

	in.Close()
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return outPath, nil
}

// copyMatches copies each directory in srcDir matching pattern into destDir
func copyMatches(srcDir, pattern, destDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(srcDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to match %s: %w", pattern, err)
	}

	var copied []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		dst := filepath.Join(destDir, filepath.Base(m))
		if err := CopyTree(m, dst); err != nil {
			return copied, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

// CopyTree copies the directory src to dst, which must not exist
func CopyTree(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("destination exists: %s", dst)
	}

	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
