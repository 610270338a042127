package diarization

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LabelFile is the JSON document holding a session's labels.
type LabelFile struct {
	Labels []Segment `json:"Labels"`
}

func WriteJSON(w io.Writer, segs []Segment) error {
	if segs == nil {
		segs = []Segment{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(LabelFile{Labels: segs})
}

func ReadJSON(r io.Reader) ([]Segment, error) {
	var doc LabelFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("labels decode: %w", err)
	}
	return doc.Labels, nil
}

func WriteCSV(w io.Writer, segs []Segment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"StartTime", "EndTime", "LabelType"}); err != nil {
		return err
	}
	for _, s := range segs {
		if err := cw.Write([]string{s.StartTime.String(), s.EndTime.String(), string(s.LabelType)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes labels{stamp}.json and labels{stamp}.csv into dir and
// returns their paths.
func Export(dir string, segs []Segment, stamp string) (jsonPath, csvPath string, err error) {
	jsonPath = filepath.Join(dir, "labels"+stamp+".json")
	csvPath = filepath.Join(dir, "labels"+stamp+".csv")
	if err = writeFile(jsonPath, func(w io.Writer) error { return WriteJSON(w, segs) }); err != nil {
		return "", "", err
	}
	if err = writeFile(csvPath, func(w io.Writer) error { return WriteCSV(w, segs) }); err != nil {
		return "", "", err
	}
	return jsonPath, csvPath, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("labels %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("labels %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
