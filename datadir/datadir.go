// Package datadir implements the optional per-website data-directory
// placement named in spec.md §3/§6: content blobs over a configurable
// inline threshold are written to local disk instead of the content table's
// blob column, with the row keeping a short path marker in its place.
//
// Grounded on simplehandler/handler.go's "write fetched pages to local
// disk" idiom (MkdirAll + Create + io.Copy), generalized from one file per
// URL to one file per (url, crawl time) so repeated/archived crawls of the
// same URL don't collide.
package datadir

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/crawlserv/crawlserv/errs"
)

// markerPrefix tags a content row's blob column as a path reference rather
// than literal content; store.InsertContent/LatestContent/AllContent are
// marker-agnostic, so the offloading and resolving both happen in
// urllist.List.
const markerPrefix = "datadir://"

// DefaultInlineThreshold is the content size, in bytes, above which a
// website with a configured DataDirectory offloads to disk. 1 MiB mirrors
// MySQL's common default max_allowed_packet floor without depending on the
// server's actual setting (spec.md §3's DatabaseSettings-derived
// max_allowed_packet is a separate, server-side bound).
const DefaultInlineThreshold = 1 << 20

// ShouldOffload reports whether content exceeds threshold. threshold <= 0
// disables offloading (every row stays inline).
func ShouldOffload(content []byte, threshold int64) bool {
	return threshold > 0 && int64(len(content)) > threshold
}

// relativePath builds the on-disk path for one content row, rooted under
// dataDir: <website-ns>/<list-ns>/<url-id>_<crawl-time-unixnano>.
func relativePath(websiteNS, listNS string, urlID uint64, crawlTime time.Time) string {
	name := strconv.FormatUint(urlID, 10) + "_" + strconv.FormatInt(crawlTime.UnixNano(), 10)
	return filepath.Join(websiteNS, listNS, name)
}

// Save writes content under dataDir and returns the marker to store in the
// content row's blob column instead of the bytes themselves.
func Save(dataDir, websiteNS, listNS string, urlID uint64, crawlTime time.Time, content []byte) (string, error) {
	const op = "datadir.Save"

	rel := relativePath(websiteNS, listNS, urlID, crawlTime)
	full := filepath.Join(dataDir, rel)

	if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
		return "", errs.Wrapf(errs.Internal, op, err, "creating directory for %q", full)
	}

	out, err := os.Create(full)
	if err != nil {
		return "", errs.Wrapf(errs.Internal, op, err, "creating file %q", full)
	}
	defer out.Close()

	if _, err := out.Write(content); err != nil {
		return "", errs.Wrapf(errs.Internal, op, err, "writing file %q", full)
	}

	return markerPrefix + rel, nil
}

// Marker reports whether content is a marker written by Save, returning the
// relative path it carries.
func Marker(content []byte) (rel string, ok bool) {
	s := string(content)
	if len(s) < len(markerPrefix) || s[:len(markerPrefix)] != markerPrefix {
		return "", false
	}
	return s[len(markerPrefix):], true
}

// Load reads back the content a marker (as returned by Marker) refers to,
// rooted under dataDir.
func Load(dataDir, rel string) ([]byte, error) {
	const op = "datadir.Load"

	full := filepath.Join(dataDir, rel)
	f, err := os.Open(full)
	if err != nil {
		return nil, errs.Wrapf(errs.Internal, op, err, "opening file %q", full)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errs.Wrapf(errs.Internal, op, err, "reading file %q", full)
	}
	return b, nil
}

// Delete removes the on-disk file a marker refers to. Missing files are not
// an error: a row whose file was already cleaned up should still be
// deletable.
func Delete(dataDir, rel string) error {
	const op = "datadir.Delete"
	full := filepath.Join(dataDir, rel)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errs.Wrapf(errs.Internal, op, err, "removing file %q", full)
	}
	return nil
}

// String renders a marker's relative path back into display form, useful
// for logging without exposing the full disk path.
func String(rel string) string {
	return fmt.Sprintf("%s%s", markerPrefix, rel)
}
