package domain

import "testing"

func TestPodiumPayouts(t *testing.T) {
	tests := []struct {
		name      string
		results   []Result
		basePurse int64
		want      map[string]int64
	}{
		{
			name: "full podium of humans",
			results: []Result{
				{UserID: "u1", Placement: 1},
				{UserID: "u2", Placement: 2},
				{UserID: "u3", Placement: 3},
				{UserID: "u4", Placement: 4},
			},
			basePurse: 100,
			want: map[string]int64{
				"u1": 300,
				"u2": 200,
				"u3": 100,
			},
		},
		{
			name: "bots on the podium earn nothing",
			results: []Result{
				{UserID: "bot-1", Bot: true, Placement: 1},
				{UserID: "u1", Placement: 2},
				{UserID: "bot-2", Bot: true, Placement: 3},
			},
			basePurse: 50,
			want: map[string]int64{
				"u1": 100,
			},
		},
		{
			name: "DNF in a podium slot earns nothing",
			results: []Result{
				{UserID: "u1", Placement: 1},
				{UserID: "u2", Placement: 2, DNF: true},
			},
			basePurse: 100,
			want: map[string]int64{
				"u1": 300,
			},
		},
		{
			name: "zero purse pays nobody",
			results: []Result{
				{UserID: "u1", Placement: 1},
			},
			basePurse: 0,
			want:      map[string]int64{},
		},
		{
			name:      "no results",
			results:   nil,
			basePurse: 100,
			want:      map[string]int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PodiumPayouts(tt.results, tt.basePurse)
			if len(got) != len(tt.want) {
				t.Errorf("expected %d payouts, got %d", len(tt.want), len(got))
			}
			for uid, want := range tt.want {
				if got[uid] != want {
					t.Errorf("payout for %s: got %d, want %d", uid, got[uid], want)
				}
			}
		})
	}
}
