// Package fitimport turns a device FIT activity file into a run log entry.
package fitimport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/tormoder/fit"

	"example.com/runlog/internal/domain"
)

// Source tags entries created from FIT files.
const Source = "fit"

// ErrNoSession is returned for files without a session message.
var ErrNoSession = errors.New("no sessions found in FIT file")

// ErrNotRunning is returned when the first session is not a run.
var ErrNotRunning = errors.New("FIT session is not a running activity")

const invalidUint8 = 0xFF

// Read decodes a FIT activity and converts its first session.
func Read(r io.Reader) (domain.ActivityInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.ActivityInput{}, err
	}
	file, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.ActivityInput{}, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := file.Activity()
	if err != nil {
		return domain.ActivityInput{}, fmt.Errorf("read activity from FIT: %w", err)
	}
	if len(activity.Sessions) == 0 {
		return domain.ActivityInput{}, ErrNoSession
	}
	return FromSession(activity.Sessions[0])
}

// FromSession maps a session to an activity input: distance in km, time in
// minutes, heart rate when the device recorded it. Pace is left for the
// entry builder to derive.
func FromSession(s *fit.SessionMsg) (domain.ActivityInput, error) {
	if s == nil {
		return domain.ActivityInput{}, ErrNoSession
	}
	if s.Sport != fit.SportRunning && s.Sport != fit.SportInvalid {
		return domain.ActivityInput{}, fmt.Errorf("%w: sport %v", ErrNotRunning, s.Sport)
	}

	start := s.StartTime
	if start.IsZero() {
		start = s.Timestamp
	}
	if start.IsZero() {
		return domain.ActivityInput{}, errors.New("FIT session has no start time")
	}
	start = start.UTC()

	in := domain.ActivityInput{
		Date:   &start,
		Source: Source,
	}
	if metres := s.GetTotalDistanceScaled(); !math.IsNaN(metres) {
		in.Distance = number(round(metres/1000, 2))
	}
	if seconds := s.GetTotalTimerTimeScaled(); !math.IsNaN(seconds) {
		in.Time = number(round(seconds/60, 2))
	}
	if s.AvgHeartRate != invalidUint8 && s.AvgHeartRate != 0 {
		in.AvgHeartRate = number(float64(s.AvgHeartRate))
	}
	if s.MaxHeartRate != invalidUint8 && s.MaxHeartRate != 0 {
		in.MaxHeartRate = number(float64(s.MaxHeartRate))
	}
	return in, nil
}

func number(v float64) *domain.Number {
	n := domain.Number(v)
	return &n
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
