package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsdata/refinery/pkg/refinery"
)

// Suffix tokens appended to a source name so operators can read provenance
// off the filename alone. They follow the conventions of the upstream
// export tooling.
const (
	SuffixClean      = "_clean"
	SuffixTZ         = "_tz_converted"
	SuffixTimeOnly   = "_time_only"
	SuffixTimeOnlyTZ = "_time_only_tz"
)

// maxNameAttempts bounds the disambiguation counter. Exhausting it is a
// fatal condition, not something to retry forever.
const maxNameAttempts = 1000

// splitName splits a dataset file name into base and extension, treating
// ".csv.gz" as one extension.
func splitName(name string) (base, ext string) {
	if strings.HasSuffix(name, ".csv.gz") {
		return strings.TrimSuffix(name, ".csv.gz"), ".csv.gz"
	}
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// DeriveName derives the destination name from the source name and the
// categories of operations applied.
func DeriveName(source string, structural, timezone, timeOnly bool) string {
	base, ext := splitName(source)
	if structural {
		base += SuffixClean
	}
	switch {
	case timezone && timeOnly:
		base += SuffixTimeOnlyTZ
	case timeOnly:
		base += SuffixTimeOnly
	case timezone:
		base += SuffixTZ
	}
	return base + ext
}

// Reserve derives the destination name and atomically claims it with an
// exclusive create, appending a numeric disambiguator when the name is
// taken. A pre-existing dataset is never overwritten: that would corrupt
// unrelated pipeline history. The returned name stays claimed (as an empty
// placeholder) until Save replaces it or Release removes it; List hides the
// placeholder until the Save commits.
func (s *Store) Reserve(source string, structural, timezone, timeOnly bool) (string, error) {
	derived := DeriveName(source, structural, timezone, timeOnly)
	base, ext := splitName(derived)

	s.mu.Lock()
	defer s.mu.Unlock()
	for n := 1; n <= maxNameAttempts; n++ {
		name := derived
		if n > 1 {
			name = fmt.Sprintf("%s_%d%s", base, n, ext)
		}
		p, err := s.path(name)
		if err != nil {
			return "", err
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			return name, nil
		}
		if !os.IsExist(err) {
			return "", storageErr(err)
		}
	}
	return "", &refinery.Error{Code: refinery.CodeNameCollisionExhausted, Pos: -1, Row: -1,
		Msg: fmt.Sprintf("no free name for %q after %d attempts", derived, maxNameAttempts)}
}

// Release removes a reservation placeholder after an aborted run.
func (s *Store) Release(name string) {
	_ = s.Remove(name)
}
