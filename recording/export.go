package recording

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var faceCSVHeader = []string{
	"time", "trackingID", "pitch", "yaw", "roll",
	"positionX", "positionY", "positionZ", "beamAngle", "isSpeaking",
}

// FaceInfo is the JSON document holding a session's face records.
type FaceInfo struct {
	FaceInfos []FaceRecord `json:"faceInfos"`
}

// FileStamp is the local-time suffix of export files: month, day, hour and
// minute without padding.
func FileStamp(t time.Time) string {
	return fmt.Sprintf("%d%d%d%d", int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

// PivotRawLines blanks the leading time column of every line that repeats
// the time of the line before it, so each time instant keeps its stamp once.
func PivotRawLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	prev, havePrev := "", false
	for _, line := range lines {
		ts, rest, _ := strings.Cut(line, ",")
		if havePrev && ts == prev {
			out = append(out, ","+rest)
			continue
		}
		prev, havePrev = ts, true
		out = append(out, line)
	}
	return out
}

func WriteRawCSV(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, line := range PivotRawLines(lines) {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func WriteFacesCSV(w io.Writer, faces []FaceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(faceCSVHeader); err != nil {
		return err
	}
	for _, f := range faces {
		row := []string{
			f.Time.String(),
			strconv.Itoa(f.TrackingID),
			formatFloat(f.Pitch),
			formatFloat(f.Yaw),
			formatFloat(f.Roll),
			formatFloat(f.PositionX),
			formatFloat(f.PositionY),
			formatFloat(f.PositionZ),
			strconv.FormatFloat(float64(f.BeamAngle), 'g', -1, 32),
			strconv.FormatBool(f.IsSpeaking),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteJSON(w io.Writer, faces []FaceRecord) error {
	if faces == nil {
		faces = []FaceRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(FaceInfo{FaceInfos: faces})
}

func ReadJSON(r io.Reader) ([]FaceRecord, error) {
	var doc FaceInfo
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("face info decode: %w", err)
	}
	return doc.FaceInfos, nil
}

// Files are the paths written by Export.
type Files struct {
	RawCSV     string `json:"raw_csv"`
	RecordsCSV string `json:"records_csv"`
	JSON       string `json:"json"`
}

// Export writes the raw track, the record CSV and the JSON document for
// snap into dir. Any write failure aborts the export.
func Export(dir string, snap *Snapshot, stamp string) (Files, error) {
	files := Files{
		RawCSV:     filepath.Join(dir, "faceinfo"+stamp+".csv"),
		RecordsCSV: filepath.Join(dir, "faceinfo"+stamp+"_records.csv"),
		JSON:       filepath.Join(dir, "faceinfo"+stamp+".json"),
	}
	if err := writeFile(files.RawCSV, func(w io.Writer) error { return WriteRawCSV(w, snap.RawLines) }); err != nil {
		return files, err
	}
	if err := writeFile(files.RecordsCSV, func(w io.Writer) error { return WriteFacesCSV(w, snap.Faces) }); err != nil {
		return files, err
	}
	if err := writeFile(files.JSON, func(w io.Writer) error { return WriteJSON(w, snap.Faces) }); err != nil {
		return files, err
	}
	return files, nil
}

func LoadJSON(path string) ([]FaceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export %s: %w", filepath.Base(path), err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
