package backup

import (
	"archive/zip"
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"iter"
)

// errFileNotFound indicates a file was not found in the backup archive.
var errFileNotFound = errors.New("file not found in backup")

// jsonlWriter streams records as JSON lines into one zip entry.
type jsonlWriter struct {
	enc   *json.Encoder
	count int
}

func newJSONLWriter(zw *zip.Writer, name string) (*jsonlWriter, error) {
	w, err := zw.Create(name)
	if err != nil {
		return nil, err
	}
	return &jsonlWriter{enc: json.NewEncoder(w)}, nil
}

// Write encodes one record followed by a newline.
func (w *jsonlWriter) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	w.count++
	return nil
}

func openEntry(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, errFileNotFound
}

// readJSONL iterates the records of one entry. A missing entry yields
// nothing; a malformed line yields its error and reading continues.
func readJSONL[T any](zr *zip.Reader, name string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		rc, err := openEntry(zr, name)
		if errors.Is(err, errFileNotFound) {
			return
		}
		var zero T
		if err != nil {
			yield(zero, err)
			return
		}
		defer rc.Close()

		sc := bufio.NewScanner(rc)
		sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}
			var v T
			if err := json.Unmarshal(line, &v); err != nil {
				if !yield(zero, err) {
					return
				}
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(zero, err)
		}
	}
}
