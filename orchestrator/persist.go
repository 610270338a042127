package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	cfg "github.com/maastricht-university/edmo-sensing/config"
	"github.com/maastricht-university/edmo-sensing/diarization"
	"github.com/maastricht-university/edmo-sensing/recording"
)

// mkSessionDir creates a new directory named after now. A session stopped
// in the same second as an earlier one gets a numeric suffix.
func mkSessionDir(outputsRoot string, now time.Time) (string, error) {
	if err := os.MkdirAll(outputsRoot, 0o755); err != nil {
		return "", err
	}
	base := filepath.Join(outputsRoot, "session_"+now.Format("20060102-150405"))
	dir := base
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		dir = fmt.Sprintf("%s_%d", base, n)
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeConfig(path string, c *cfg.Root) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := cfg.Dump(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// persist writes every export of s into a fresh session directory under
// paths.outputs and records the paths on s.
func (p *Pipeline) persist(s *Session, snap *recording.Snapshot) error {
	now := p.now()
	dir, err := mkSessionDir(p.cfg.Paths.Outputs, now)
	if err != nil {
		return err
	}
	s.Dir = dir
	stamp := recording.FileStamp(now.Local())

	if s.Files, err = recording.Export(dir, snap, stamp); err != nil {
		return err
	}
	if s.LabelsJSON, s.LabelsCSV, err = diarization.Export(dir, s.Labels, stamp); err != nil {
		return err
	}
	if err = writeJSON(filepath.Join(dir, "summary.json"), s); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	if err = writeConfig(filepath.Join(dir, "config.yaml"), p.cfg); err != nil {
		return fmt.Errorf("config snapshot: %w", err)
	}
	return nil
}
