package diarization

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/maastricht-university/edmo-sensing/recording"
)

func ms(n int) recording.Elapsed { return recording.Elapsed(time.Duration(n) * time.Millisecond) }

type ob = struct {
	beam     float32
	speaking bool
}

// timeline builds one record per 100ms from (beamAngle, speaking) pairs.
func timeline(obs ...ob) []recording.FaceRecord {
	out := make([]recording.FaceRecord, len(obs))
	for i, o := range obs {
		out[i] = recording.FaceRecord{Time: ms(i * 100), BeamAngle: o.beam, IsSpeaking: o.speaking}
	}
	return out
}

func TestSilentTimelineHasNoLabels(t *testing.T) {
	recs := timeline(ob{0.3, false}, ob{-0.2, false}, ob{0, false})
	if got := Label(recs, false); len(got) != 0 {
		t.Errorf("got %v, want no labels", got)
	}
	if got := Label(nil, true); got == nil || len(got) != 0 {
		t.Errorf("nil timeline: got %#v, want empty slice", got)
	}
}

func TestSingleInterval(t *testing.T) {
	recs := timeline(
		ob{0.4, false},
		ob{0.4, true},
		ob{0.5, true},
		ob{0.3, true},
		ob{0.3, false},
		ob{0.3, false},
	)
	want := []Segment{{StartTime: ms(100), EndTime: ms(400), LabelType: LeftSpeak}}
	if got := Label(recs, false); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRightSpeakerAndZeroAngle(t *testing.T) {
	recs := timeline(ob{-0.4, true}, ob{-0.4, false}, ob{0, true}, ob{0, false})
	want := []Segment{
		{StartTime: ms(0), EndTime: ms(100), LabelType: RightSpeak},
		{StartTime: ms(200), EndTime: ms(300), LabelType: RightSpeak},
	}
	if got := Label(recs, false); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTurnChangeWithoutPause(t *testing.T) {
	recs := timeline(
		ob{0.5, true},  // left starts
		ob{-0.5, true}, // flip 1
		ob{-0.4, true},
		ob{0.2, true},  // flip 2
		ob{0.2, false}, // stop
	)
	want := []Segment{
		{StartTime: ms(0), EndTime: ms(100), LabelType: LeftSpeak},
		{StartTime: ms(100), EndTime: ms(300), LabelType: RightSpeak},
		{StartTime: ms(300), EndTime: ms(400), LabelType: LeftSpeak},
	}
	if got := Label(recs, false); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNAlternationsYieldNSegments(t *testing.T) {
	for n := 1; n <= 5; n++ {
		obs := []ob{{0.3, true}}
		beam := float32(0.3)
		for i := 0; i < n; i++ {
			beam = -beam
			obs = append(obs, ob{beam, true})
		}
		if got := Label(timeline(obs...), false); len(got) != n {
			t.Errorf("%d alternations: got %d segments", n, len(got))
		}
	}
}

func TestFlipThroughZeroIsNotATurn(t *testing.T) {
	recs := timeline(ob{0.3, true}, ob{0, true}, ob{-0.3, true}, ob{-0.3, false})
	want := []Segment{{StartTime: ms(0), EndTime: ms(300), LabelType: LeftSpeak}}
	if got := Label(recs, false); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestOpenIntervalAtEnd(t *testing.T) {
	recs := timeline(ob{0.3, false}, ob{-0.3, true}, ob{-0.3, true})

	if got := Label(recs, false); len(got) != 0 {
		t.Errorf("unterminated interval emitted: %v", got)
	}

	want := []Segment{{StartTime: ms(100), EndTime: ms(200), LabelType: RightSpeak}}
	if got := Label(recs, true); !reflect.DeepEqual(got, want) {
		t.Errorf("closed: got %v, want %v", got, want)
	}
}

func TestCloseSkipsIntervalOpenedAtLastRecord(t *testing.T) {
	// the last record both ends the left turn and opens the right one
	recs := timeline(ob{0.3, true}, ob{0.3, true}, ob{-0.3, true})
	want := []Segment{{StartTime: ms(0), EndTime: ms(200), LabelType: LeftSpeak}}
	if got := Label(recs, true); !reflect.DeepEqual(got, want) {
		t.Errorf("turn change at end: got %v, want %v", got, want)
	}

	recs = timeline(ob{0.3, false}, ob{0.3, true})
	if got := Label(recs, true); len(got) != 0 {
		t.Errorf("speech starting at end: got %v, want none", got)
	}

	l := NewLabeler()
	l.Observe(ms(0), 0.2, true)
	if l.Close() {
		t.Error("Close emitted a zero-length segment")
	}
	if l.Open() {
		t.Error("interval still open after Close")
	}
}

func TestSegmentsOrderedAndDisjoint(t *testing.T) {
	var obs []ob
	for i := 0; i < 200; i++ {
		beam := float32(0.4)
		if (i/7)%2 == 1 {
			beam = -0.4
		}
		obs = append(obs, ob{beam, i%11 != 0})
	}
	segs := Label(timeline(obs...), true)
	for i, s := range segs {
		if s.EndTime < s.StartTime {
			t.Fatalf("segment %d ends before it starts: %v", i, s)
		}
		if i > 0 && s.StartTime < segs[i-1].EndTime {
			t.Fatalf("segment %d overlaps previous: %v after %v", i, s, segs[i-1])
		}
	}
}

func TestObserveReturnsClosedSegments(t *testing.T) {
	l := NewLabeler()
	if got := l.Observe(ms(0), 0.2, true); len(got) != 0 {
		t.Fatalf("start emitted %v", got)
	}
	if !l.Open() {
		t.Fatal("interval not open after speech started")
	}
	got := l.Observe(ms(50), 0.2, false)
	if len(got) != 1 || got[0].EndTime != ms(50) {
		t.Fatalf("stop emitted %v", got)
	}
	if l.Close() {
		t.Error("Close reported an open interval after silence")
	}
}

func TestLabelExport(t *testing.T) {
	segs := []Segment{
		{StartTime: ms(100), EndTime: ms(1400), LabelType: LeftSpeak},
		{StartTime: ms(1400), EndTime: ms(62000), LabelType: RightSpeak},
	}

	var js bytes.Buffer
	if err := WriteJSON(&js, segs); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"Labels"`) || !strings.Contains(js.String(), `"LabelType": "RightSpeak"`) {
		t.Errorf("json: %s", js.String())
	}
	back, err := ReadJSON(&js)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, segs) {
		t.Errorf("round trip: got %v, want %v", back, segs)
	}

	var c bytes.Buffer
	if err := WriteCSV(&c, segs); err != nil {
		t.Fatal(err)
	}
	want := "StartTime,EndTime,LabelType\n0:0:0:100,0:0:1:400,LeftSpeak\n0:0:1:400,0:1:2:0,RightSpeak\n"
	if c.String() != want {
		t.Errorf("csv: got %q, want %q", c.String(), want)
	}
}

func TestExportFiles(t *testing.T) {
	dir := t.TempDir()
	jp, cp, err := Export(dir, nil, "53147")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(jp, "labels53147.json") || !strings.HasSuffix(cp, "labels53147.csv") {
		t.Errorf("paths %s %s", jp, cp)
	}
}
