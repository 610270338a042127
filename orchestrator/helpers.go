package orchestrator

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/maastricht-university/edmo-sensing/diarization"
	"github.com/maastricht-university/edmo-sensing/recording"
)

func summarize(snap *recording.Snapshot, labels []diarization.Segment) Summary {
	sum := Summary{
		Duration:      snap.StoppedAt.Sub(snap.StartedAt).Seconds(),
		Records:       len(snap.Faces),
		Turns:         len(labels),
		SpeakingTime:  map[diarization.LabelType]float64{},
		SpeakingShare: map[diarization.LabelType]float64{},
	}

	type series struct{ pitch, yaw, roll []float64 }
	bySlot := map[int]*series{}
	for _, f := range snap.Faces {
		s, ok := bySlot[f.TrackingID]
		if !ok {
			s = &series{}
			bySlot[f.TrackingID] = s
		}
		s.pitch = append(s.pitch, f.Pitch)
		s.yaw = append(s.yaw, f.Yaw)
		s.roll = append(s.roll, f.Roll)
	}
	for id, s := range bySlot {
		st := SlotStats{TrackingID: id, Records: len(s.yaw)}
		st.MeanPitch, st.StdPitch = meanStd(s.pitch)
		st.MeanYaw, st.StdYaw = meanStd(s.yaw)
		st.MeanRoll, st.StdRoll = meanStd(s.roll)
		sum.Slots = append(sum.Slots, st)
	}
	sort.Slice(sum.Slots, func(i, j int) bool { return sum.Slots[i].TrackingID < sum.Slots[j].TrackingID })

	total := 0.0
	for _, l := range labels {
		d := (l.EndTime - l.StartTime).Seconds()
		sum.SpeakingTime[l.LabelType] += d
		total += d
	}
	if total > 0 {
		for k, v := range sum.SpeakingTime {
			sum.SpeakingShare[k] = v / total
		}
	}
	return sum
}

// meanStd is stat.MeanStdDev with a zero deviation for fewer than two samples.
func meanStd(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}
