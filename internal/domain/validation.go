package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"example.com/runlog/internal/timeutil"
)

// ErrValidation is wrapped by every boundary validation failure.
var ErrValidation = errors.New("validation failed")

// ValidationError lists every problem found in a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Is lets callers match with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// Number is a JSON numeric field that also accepts numeric strings.
type Number float64

// UnmarshalJSON rejects anything that is not a finite number.
func (n *Number) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		raw = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%q is not a number", string(data))
	}
	*n = Number(v)
	return nil
}

func numPtr(v float64) *Number {
	n := Number(v)
	return &n
}

// ActivityInput is an unvalidated activity as received at a boundary. Nil fields were not supplied.
type ActivityInput struct {
	Date         *time.Time `json:"date"`
	Distance     *Number    `json:"distance"`
	Time         *Number    `json:"time"`
	Pace         *Number    `json:"pace"`
	AvgHeartRate *Number    `json:"avgHeartRate"`
	MaxHeartRate *Number    `json:"maxHeartRate"`
	VO2Max       *Number    `json:"vo2Max"`
	Kind         string     `json:"kind,omitempty"`
	Source       string     `json:"source,omitempty"`
}

// Entry validates the input and returns a fully defaulted ActivityEntry.
func (in ActivityInput) Entry() (ActivityEntry, error) {
	verr := &ValidationError{}
	in.validate("", verr)
	if err := verr.orNil(); err != nil {
		return ActivityEntry{}, err
	}
	return in.build(), nil
}

func (in ActivityInput) validate(path string, verr *ValidationError) {
	if in.Kind != "" && in.Kind != KindTarget {
		verr.add("%skind must be empty or %q", path, KindTarget)
	}
	if in.Date == nil || in.Date.IsZero() {
		verr.add("%sdate is required", path)
	}
	if in.Distance == nil {
		verr.add("%sdistance is required", path)
	} else if *in.Distance <= 0 {
		verr.add("%sdistance must be > 0", path)
	}

	if in.Kind == KindTarget {
		if in.Time != nil && *in.Time < 0 {
			verr.add("%stime must be >= 0", path)
		}
	} else if in.Time == nil {
		verr.add("%stime is required", path)
	} else if *in.Time <= 0 {
		verr.add("%stime must be > 0", path)
	}

	if in.Pace != nil && *in.Pace < 0 {
		verr.add("%space must be >= 0", path)
	}
	checkCount(verr, path+"avgHeartRate", in.AvgHeartRate)
	checkCount(verr, path+"maxHeartRate", in.MaxHeartRate)
	checkCount(verr, path+"vo2Max", in.VO2Max)
}

func checkCount(verr *ValidationError, field string, v *Number) {
	if v == nil {
		return
	}
	if *v < 0 {
		verr.add("%s must be >= 0", field)
		return
	}
	if float64(*v) != math.Trunc(float64(*v)) {
		verr.add("%s must be a whole number", field)
	}
}

func (in ActivityInput) build() ActivityEntry {
	entry := ActivityEntry{
		Date:   in.Date.UTC(),
		Kind:   in.Kind,
		Source: in.Source,
	}
	entry.Distance = deref(in.Distance)
	entry.Time = deref(in.Time)
	entry.Pace = deref(in.Pace)
	entry.AvgHeartRate = int(deref(in.AvgHeartRate))
	entry.MaxHeartRate = int(deref(in.MaxHeartRate))
	entry.VO2Max = int(deref(in.VO2Max))
	if entry.Pace == 0 && entry.Distance > 0 && entry.Time > 0 {
		entry.Pace = entry.Time / entry.Distance
	}
	return entry
}

// Merge fills every field left unset in the input from prev, so re-submitting a day keeps earlier values.
func (in ActivityInput) Merge(prev ActivityEntry) ActivityInput {
	if in.Date == nil {
		d := prev.Date
		in.Date = &d
	}
	if in.Distance == nil {
		in.Distance = numPtr(prev.Distance)
	}
	if in.Time == nil {
		in.Time = numPtr(prev.Time)
	}
	// A pace derived from the old distance and time is stale once either changes.
	if in.Pace == nil && in.Distance != nil && float64(*in.Distance) == prev.Distance && in.Time != nil && float64(*in.Time) == prev.Time {
		in.Pace = numPtr(prev.Pace)
	}
	if in.AvgHeartRate == nil {
		in.AvgHeartRate = numPtr(float64(prev.AvgHeartRate))
	}
	if in.MaxHeartRate == nil {
		in.MaxHeartRate = numPtr(float64(prev.MaxHeartRate))
	}
	if in.VO2Max == nil {
		in.VO2Max = numPtr(float64(prev.VO2Max))
	}
	if in.Source == "" {
		in.Source = prev.Source
	}
	return in
}

// WeightInput is an unvalidated weight reading.
type WeightInput struct {
	Date   *time.Time `json:"date"`
	Weight *Number    `json:"weight"`
}

// Entry validates the input and returns a WeightEntry.
func (in WeightInput) Entry() (WeightEntry, error) {
	verr := &ValidationError{}
	in.validate("", verr)
	if err := verr.orNil(); err != nil {
		return WeightEntry{}, err
	}
	return WeightEntry{Date: in.Date.UTC(), Weight: float64(*in.Weight)}, nil
}

func (in WeightInput) validate(path string, verr *ValidationError) {
	if in.Date == nil || in.Date.IsZero() {
		verr.add("%sdate is required", path)
	}
	if in.Weight == nil {
		verr.add("%sweight is required", path)
	} else if *in.Weight <= 0 {
		verr.add("%sweight must be > 0", path)
	}
}

// Payload is a decoded request body before validation.
type Payload struct {
	ActivityEntries []ActivityInput
	WeightEntries   []WeightInput
	problems        []string
	// positions of the decoded elements in the original arrays
	activityAt, weightAt []int
}

// ParseInputDate reads an RFC3339 instant or a YYYY-MM-DD day. A bare day is
// midnight in loc.
func ParseInputDate(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	day, err := timeutil.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be RFC3339 or YYYY-MM-DD", value)
	}
	return day.In(loc), nil
}

// dateField decodes a JSON date with ParseInputDate.
type dateField struct {
	loc   *time.Location
	value *time.Time
}

func (d *dateField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string")
	}
	t, err := ParseInputDate(raw, d.loc)
	if err != nil {
		return err
	}
	d.value = &t
	return nil
}

func decodeActivity(raw json.RawMessage, loc *time.Location) (ActivityInput, error) {
	type fields ActivityInput
	aux := struct {
		fields
		Date dateField `json:"date"`
	}{Date: dateField{loc: loc}}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return ActivityInput{}, err
	}
	in := ActivityInput(aux.fields)
	in.Date = aux.Date.value
	return in, nil
}

func decodeWeight(raw json.RawMessage, loc *time.Location) (WeightInput, error) {
	type fields WeightInput
	aux := struct {
		fields
		Date dateField `json:"date"`
	}{Date: dateField{loc: loc}}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return WeightInput{}, err
	}
	in := WeightInput(aux.fields)
	in.Date = aux.Date.value
	return in, nil
}

// DecodePayload reads a {activityEntries, weightEntries} document. A missing or
// non-array collection decodes as empty; malformed elements are reported by Snapshot.
// Dates given as a bare YYYY-MM-DD day are midnight in loc.
func DecodePayload(r io.Reader, loc *time.Location) (Payload, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Payload{}, fmt.Errorf("%w: body is not a JSON object: %v", ErrValidation, err)
	}

	var p Payload
	for i, raw := range rawArray(doc["activityEntries"]) {
		in, err := decodeActivity(raw, loc)
		if err != nil {
			p.problems = append(p.problems, fmt.Sprintf("activityEntries[%d]: %v", i, err))
			continue
		}
		p.ActivityEntries = append(p.ActivityEntries, in)
		p.activityAt = append(p.activityAt, i)
	}
	for i, raw := range rawArray(doc["weightEntries"]) {
		in, err := decodeWeight(raw, loc)
		if err != nil {
			p.problems = append(p.problems, fmt.Sprintf("weightEntries[%d]: %v", i, err))
			continue
		}
		p.WeightEntries = append(p.WeightEntries, in)
		p.weightAt = append(p.weightAt, i)
	}
	return p, nil
}

func rawArray(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// Snapshot validates every element and returns the typed delta.
func (p Payload) Snapshot() (Snapshot, error) {
	verr := &ValidationError{Problems: append([]string(nil), p.problems...)}
	for i, in := range p.ActivityEntries {
		in.validate(fmt.Sprintf("activityEntries[%d].", position(p.activityAt, i)), verr)
	}
	for i, in := range p.WeightEntries {
		in.validate(fmt.Sprintf("weightEntries[%d].", position(p.weightAt, i)), verr)
	}
	if err := verr.orNil(); err != nil {
		return Snapshot{}, err
	}

	out := EmptySnapshot()
	for _, in := range p.ActivityEntries {
		out.ActivityEntries = append(out.ActivityEntries, in.build())
	}
	for _, in := range p.WeightEntries {
		out.WeightEntries = append(out.WeightEntries, WeightEntry{Date: in.Date.UTC(), Weight: float64(*in.Weight)})
	}
	return out, nil
}

func position(at []int, i int) int {
	if i < len(at) {
		return at[i]
	}
	return i
}

func deref(n *Number) float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}
