package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

const sample = `
pipeline:
  name: kinect-lab
  log_level: debug
sensor:
  max_bodies: 4
orientation:
  quantize: false
audio:
  threshold_db: -80
store:
  driver: postgres
  dsn: postgres://edmo@localhost/edmo
paths:
  outputs: /tmp/edmo
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadFileOverDefaults(t *testing.T) {
	cfg, err := Load(nil, writeConfig(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.Name != "kinect-lab" || cfg.Sensor.MaxBodies != 4 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Orientation.Quantize {
		t.Error("quantize should be off")
	}
	if cfg.Orientation.Increment != 5 {
		t.Errorf("increment default: got %v, want 5", cfg.Orientation.Increment)
	}
	if cfg.Audio.ThresholdDb != -80 || cfg.Audio.SamplesPerColumn != 40 || cfg.Audio.SubFrameBytes != 1024 {
		t.Errorf("audio: %+v", cfg.Audio)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.Keyspace != "edmo" {
		t.Errorf("store: %+v", cfg.Store)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("EDMO_AUDIO_THRESHOLD_DB", "-65")
	t.Setenv("EDMO_DIARIZATION_CLOSE_OPEN_SEGMENT", "true")
	cfg, err := Load(nil, writeConfig(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.ThresholdDb != -65 {
		t.Errorf("threshold: got %v, want -65", cfg.Audio.ThresholdDb)
	}
	if !cfg.Diarization.CloseOpenSegment {
		t.Error("close_open_segment not overridden")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	if _, err := Load(nil, writeConfig(t, "sensor:\n  max_bodies: 0\n")); err == nil {
		t.Error("expected error for zero max_bodies")
	}
	if _, err := Load(nil, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestDumpAndLogger(t *testing.T) {
	cfg, err := Load(nil, writeConfig(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Dump(&buf, cfg); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"threshold_db: -80", "max_bodies: 4", "close_open_segment: false"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("dump missing %q:\n%s", want, buf.String())
		}
	}

	log, err := cfg.Logger()
	if err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level: got %v, want debug", log.GetLevel())
	}
	cfg.Pipeline.LogLvl = "chatty"
	if _, err := cfg.Logger(); err == nil {
		t.Error("expected error for unknown log level")
	}
}
