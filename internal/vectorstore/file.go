package vectorstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	queroerr "quero/pkg/errors"
)

// fileRecord mirrors Record with pointer fields so missing keys and null
// components can be told apart from empty values while validating a loaded file.
type fileRecord struct {
	Vector   *[]*float64    `json:"vector"`
	Text     *string        `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// loadRecords reads the persistence file. A missing file yields no records
// and no error; anything that is not an array of well-formed records is
// reported as a malformed store file.
func loadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, queroerr.Wrap(err, queroerr.CodeStoreFileReadFailure, "reading store file", queroerr.FieldPath(path))
	}
	return decodeRecords(path, data)
}

func decodeRecords(path string, data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, queroerr.New(queroerr.CodeStoreFileMalformed, "store file is not a JSON array", queroerr.FieldPath(path))
	}
	var raw []fileRecord
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, queroerr.Wrap(err, queroerr.CodeStoreFileMalformed, "decoding store file", queroerr.FieldPath(path))
	}
	records := make([]Record, 0, len(raw))
	dimension := 0
	for i, r := range raw {
		if r.Vector == nil || len(*r.Vector) == 0 {
			return nil, queroerr.New(queroerr.CodeStoreFileMalformed,
				fmt.Sprintf("record %d has no vector", i), queroerr.FieldPath(path), queroerr.Field("record", i))
		}
		vec := make([]float64, len(*r.Vector))
		for j, x := range *r.Vector {
			if x == nil {
				return nil, queroerr.New(queroerr.CodeStoreFileMalformed,
					fmt.Sprintf("record %d has a null vector component at %d", i, j),
					queroerr.FieldPath(path), queroerr.Field("record", i))
			}
			vec[j] = *x
		}
		if dimension == 0 {
			dimension = len(vec)
		} else if len(vec) != dimension {
			return nil, queroerr.New(queroerr.CodeStoreFileMalformed,
				fmt.Sprintf("record %d has dimension %d, expected %d", i, len(vec), dimension),
				queroerr.FieldPath(path), queroerr.Field("record", i), queroerr.Field("dimension", len(vec)))
		}
		rec := Record{Vector: vec, Metadata: r.Metadata}
		if r.Text != nil {
			rec.Text = *r.Text
		}
		if rec.Metadata == nil {
			rec.Metadata = map[string]any{}
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeRecords replaces the persistence file with the full record sequence.
// The data goes to a temporary file in the same directory which is then
// renamed over the target, so readers never observe a half-written file.
// An existing target keeps its permissions. Parent directories are not created.
func writeRecords(path string, records []Record) (int, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "\t")
	if err != nil {
		return 0, queroerr.Wrap(err, queroerr.CodeStorePersistWriteFailure, "encoding records", queroerr.FieldPath(path))
	}
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return 0, queroerr.Wrap(err, queroerr.CodeStorePersistWriteFailure, "creating temp file", queroerr.FieldPath(path))
	}
	tmpName := tmp.Name()
	fail := func(err error, msg string) (int, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return 0, queroerr.Wrap(err, queroerr.CodeStorePersistWriteFailure, msg, queroerr.FieldPath(path))
	}
	if _, err := tmp.Write(data); err != nil {
		return fail(err, "writing temp file")
	}
	if err := tmp.Chmod(targetMode(path)); err != nil {
		return fail(err, "setting file mode")
	}
	if err := tmp.Sync(); err != nil {
		return fail(err, "syncing temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, queroerr.Wrap(err, queroerr.CodeStorePersistWriteFailure, "closing temp file", queroerr.FieldPath(path))
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return 0, queroerr.Wrap(err, queroerr.CodeStorePersistWriteFailure, "replacing store file", queroerr.FieldPath(path))
	}
	return len(data), nil
}

// targetMode is the mode of the existing file at path, or 0644 for a new one.
func targetMode(path string) fs.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}
