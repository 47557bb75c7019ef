package structure

import (
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/zurustar/tunesync/pkg/fileutil"
	"github.com/zurustar/tunesync/pkg/smftest"
)

func TestSMFFirstMeasure(t *testing.T) {
	tests := []struct {
		name   string
		meta   func() smf.Track
		notes  smf.Track
		want   float64
		hasErr bool
	}{
		{
			name: "full first bar in 4/4",
			meta: func() smf.Track {
				var tr smf.Track
				tr.Add(0, smftest.Meter(4, 4))
				return tr
			},
			notes: smftest.Melody(1, 60, 62, 64, 65, 67),
			want:  4,
		},
		{
			name: "6/8 bar is three quarters",
			meta: func() smf.Track {
				var tr smf.Track
				tr.Add(0, smftest.Meter(6, 8))
				return tr
			},
			notes: smftest.Melody(0.5, 60, 62, 64, 65, 67, 69, 71),
			want:  3,
		},
		{
			name: "pickup written as a short meter",
			meta: func() smf.Track {
				var tr smf.Track
				tr.Add(0, smftest.Meter(1, 4))
				tr.Add(smftest.Resolution, smftest.Meter(4, 4))
				return tr
			},
			notes: smftest.Melody(1, 60, 62, 64, 65, 67),
			want:  1,
		},
		{
			name: "meter change inside a bar cuts it short",
			meta: func() smf.Track {
				var tr smf.Track
				tr.Add(0, smftest.Meter(3, 4))
				tr.Add(smftest.Resolution/2, smftest.Meter(3, 4))
				return tr
			},
			notes: smftest.Melody(1, 60, 62, 64),
			want:  0.5,
		},
		{
			name: "no time signature",
			meta: func() smf.Track {
				var tr smf.Track
				tr.Add(0, smftest.Tempo(500000))
				return tr
			},
			notes:  smftest.Melody(1, 60),
			hasErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := smftest.Write(t, "tune.mid", tt.meta(), tt.notes)

			got, err := SMF{}.FirstMeasure(path)
			if tt.hasErr {
				if !errors.Is(err, ErrNoMeasures) {
					t.Fatalf("error = %v, want ErrNoMeasures", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FirstMeasure failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("FirstMeasure = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestSMFFirstMeasureWithoutNotes(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smftest.Meter(4, 4))
	tr.Add(smftest.Resolution, midi.ProgramChange(0, 1))

	_, err := SMF{}.FirstMeasure(smftest.Write(t, "empty.mid", tr))
	if !errors.Is(err, ErrNoMeasures) {
		t.Errorf("error = %v, want ErrNoMeasures", err)
	}
}

func TestSMFFirstMeasureMissingFile(t *testing.T) {
	_, err := SMF{}.FirstMeasure(filepath.Join(t.TempDir(), "missing.mid"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrNoMeasures) {
		t.Error("a missing file is not the same as a file without measures")
	}
}

func TestSMFFirstMeasureFromFS(t *testing.T) {
	var meta smf.Track
	meta.Add(0, smftest.Meter(3, 4))
	meta.Add(smftest.Resolution, smftest.Meter(4, 4))
	fsys := fstest.MapFS{
		"Hornpipe.mid": {Data: smftest.Bytes(t, meta, smftest.Melody(1, 60, 62, 64, 65, 67))},
	}

	got, err := SMF{FS: fileutil.NewIOFS(fsys, "")}.FirstMeasure("hornpipe.mid")
	if err != nil {
		t.Fatalf("FirstMeasure failed: %v", err)
	}
	if got != 1 {
		t.Errorf("FirstMeasure = %g, want 1", got)
	}
}

func TestFixed(t *testing.T) {
	got, err := Fixed(1.5).FirstMeasure("ignored.mid")
	if err != nil || got != 1.5 {
		t.Errorf("Fixed(1.5).FirstMeasure = %g, %v", got, err)
	}
}

func TestFindBarsLayout(t *testing.T) {
	var meta smf.Track
	meta.Add(0, smftest.Meter(2, 4))
	meta.Add(smftest.Resolution, smftest.Meter(3, 4))
	meta.Close(0)
	notes := smftest.Melody(1, 60, 62, 64, 65, 67, 69, 71)
	notes.Close(0)

	mid := smf.NewSMF1()
	mid.TimeFormat = smf.MetricTicks(smftest.Resolution)
	if err := mid.Add(meta); err != nil {
		t.Fatal(err)
	}
	if err := mid.Add(notes); err != nil {
		t.Fatal(err)
	}

	bars := findBars(mid, smftest.Resolution)
	// one quarter pickup, then 3/4 bars until the last note ends at 7 quarters
	wantBegins := []int64{0, 1 * smftest.Resolution, 4 * smftest.Resolution}
	if len(bars) != len(wantBegins) {
		t.Fatalf("got %d bars, want %d: %+v", len(bars), len(wantBegins), bars)
	}
	for i, b := range bars {
		if b.Begin != wantBegins[i] {
			t.Errorf("bar %d begins at %d, want %d", i, b.Begin, wantBegins[i])
		}
	}
	if bars[0].Length != smftest.Resolution {
		t.Errorf("pickup bar = %+v", bars[0])
	}
	if bars[2].End() != 7*smftest.Resolution {
		t.Errorf("last bar ends at %d, want %d", bars[2].End(), 7*smftest.Resolution)
	}
}
