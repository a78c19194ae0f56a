package sim

import "testing"

func TestLatencyModel(t *testing.T) {
	tests := []struct {
		name       string
		model      LatencyModel
		seq        int64
		wantSubmit int64
		wantCancel int64
	}{
		{"zero_latency", ZeroLatency, 10, 10, 10},
		{"one_tick", LatencyModel{SubmitTicks: 1, CancelTicks: 1}, 10, 11, 11},
		{"asymmetric", LatencyModel{SubmitTicks: 3, CancelTicks: 1}, 100, 103, 101},
		{"from_zero", LatencyModel{SubmitTicks: 2, CancelTicks: 5}, 0, 2, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.model.EffectiveSeq(tt.seq); got != tt.wantSubmit {
				t.Errorf("EffectiveSeq(%d) = %d, want %d", tt.seq, got, tt.wantSubmit)
			}
			if got := tt.model.CancelEffectiveSeq(tt.seq); got != tt.wantCancel {
				t.Errorf("CancelEffectiveSeq(%d) = %d, want %d", tt.seq, got, tt.wantCancel)
			}
		})
	}
}
