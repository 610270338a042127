package clients

import (
	"context"
)

// --- Visualization ---

// TimelineReq describes speaking turns: one entry per label, times in
// seconds from session start.
type TimelineReq struct {
	Timestamps []float64 `json:"timestamps"`
	Durations  []float64 `json:"durations"`
	Speakers   []string  `json:"speakers"`
	OutputDir  string    `json:"output_dir,omitempty"`
}

type TimelineResp struct{ Status, Path string }

func (h *HTTP) GenerateTimeline(ctx context.Context, url string, req TimelineReq) (*TimelineResp, error) {
	var out TimelineResp
	if err := h.postJSON(ctx, "viz timeline", url+"/generate-timeline", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RadarReq plots one participant's head angle profile.
type RadarReq struct {
	Categories  []string  `json:"categories"`
	Values      []float64 `json:"values"`
	Participant string    `json:"student_name"`
	OutputDir   string    `json:"output_dir,omitempty"`
}
type RadarResp struct{ Status, Path string }

func (h *HTTP) GenerateRadar(ctx context.Context, url string, req RadarReq) (*RadarResp, error) {
	var out RadarResp
	if err := h.postJSON(ctx, "viz radar", url+"/generate-radar", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
