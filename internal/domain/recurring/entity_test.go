package recurring

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tuesdayAt3pm() *Series {
	return &Series{
		DayOfWeek:       int(time.Tuesday),
		StartMinute:     15 * 60,
		DurationMinutes: 60,
		StartDate:       date(2026, 10, 1), // a Thursday
	}
}

func TestOccurrences(t *testing.T) {
	first := time.Date(2026, 10, 6, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		after time.Time
		end   *time.Time
		n     int
		want  []time.Time
	}{
		{
			name:  "starts on the first matching weekday",
			after: date(2026, 10, 1),
			n:     3,
			want:  []time.Time{first, first.AddDate(0, 0, 7), first.AddDate(0, 0, 14)},
		},
		{
			name:  "never before the start date",
			after: date(2026, 9, 1),
			n:     1,
			want:  []time.Time{first},
		},
		{
			name:  "same day before the lesson",
			after: time.Date(2026, 10, 6, 14, 0, 0, 0, time.UTC),
			n:     1,
			want:  []time.Time{first},
		},
		{
			name:  "strictly after",
			after: first,
			n:     1,
			want:  []time.Time{first.AddDate(0, 0, 7)},
		},
		{
			name:  "end date is inclusive",
			after: date(2026, 10, 1),
			end:   timePtr(date(2026, 10, 13)),
			n:     10,
			want:  []time.Time{first, first.AddDate(0, 0, 7)},
		},
		{
			name:  "end date before first occurrence",
			after: date(2026, 10, 1),
			end:   timePtr(date(2026, 10, 5)),
			n:     10,
			want:  nil,
		},
		{
			name:  "zero count",
			after: date(2026, 10, 1),
			n:     0,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tuesdayAt3pm()
			s.EndDate = tt.end
			got := s.Occurrences(tt.after, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d occurrences, got %d: %v", len(tt.want), len(got), got)
			}
			for i := range got {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("occurrence %d: got %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestOccurrencesBoundedAndUTC(t *testing.T) {
	s := tuesdayAt3pm()
	local := time.FixedZone("UTC+5", 5*3600)

	// 2026-10-06 02:00 at UTC+5 is still Monday in UTC
	got := s.Occurrences(time.Date(2026, 10, 6, 2, 0, 0, 0, local), MaxWeeks)
	if len(got) != MaxWeeks {
		t.Fatalf("expected %d occurrences, got %d", MaxWeeks, len(got))
	}
	if want := time.Date(2026, 10, 6, 15, 0, 0, 0, time.UTC); !got[0].Equal(want) {
		t.Fatalf("first occurrence %s, want %s", got[0], want)
	}
	for i, o := range got {
		if o.Location() != time.UTC {
			t.Fatalf("occurrence %d not in UTC", i)
		}
		if o.Weekday() != time.Tuesday || o.Hour() != 15 {
			t.Fatalf("occurrence %d drifted: %s", i, o)
		}
	}
	if last := got[len(got)-1]; !last.Equal(got[0].AddDate(0, 0, 7*(MaxWeeks-1))) {
		t.Fatalf("unexpected last occurrence %s", last)
	}
}

func TestValidateInput(t *testing.T) {
	valid := CreateInput{
		StudentID:       uuid.New(),
		TeacherID:       uuid.New(),
		Category:        "one_to_one",
		DayOfWeek:       int(time.Sunday),
		StartMinute:     9 * 60,
		DurationMinutes: 60,
		StartDate:       date(2026, 11, 1),
	}
	if err := ValidateInput(valid); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CreateInput)
		want   error
	}{
		{"video course", func(in *CreateInput) { in.Category = "video_course" }, ErrInvalidCategory},
		{"day out of range", func(in *CreateInput) { in.DayOfWeek = 7 }, ErrInvalidRule},
		{"minute out of range", func(in *CreateInput) { in.StartMinute = 1440 }, ErrInvalidRule},
		{"no duration", func(in *CreateInput) { in.DurationMinutes = 0 }, ErrInvalidRule},
		{"no start date", func(in *CreateInput) { in.StartDate = time.Time{} }, ErrInvalidRule},
		{"end before start", func(in *CreateInput) { in.EndDate = timePtr(date(2026, 10, 1)) }, ErrInvalidRule},
		{"missing teacher", func(in *CreateInput) { in.TeacherID = uuid.Nil }, ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if err := ValidateInput(in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
