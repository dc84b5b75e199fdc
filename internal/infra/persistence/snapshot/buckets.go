package snapshot

import (
	"encoding/json"
	"fmt"

	"admissions/pkg/domain"
)

// Bucket names used by the table-backed stores.
const (
	BucketStudents = "students"
	BucketCounters = "counters"
)

// Buckets lists the persisted buckets in write order.
func Buckets() []string {
	return []string{BucketStudents, BucketCounters}
}

// EncodeBuckets splits the aggregate into its JSON bucket payloads.
func EncodeBuckets(state domain.AppState) (map[string][]byte, error) {
	students := state.Students
	if students == nil {
		students = []domain.Student{}
	}
	studentData, err := json.Marshal(students)
	if err != nil {
		return nil, fmt.Errorf("encode students: %w", err)
	}
	counterData, err := json.Marshal(domain.Counters{FormInventory: state.FormInventory, TotalRevenue: state.TotalRevenue})
	if err != nil {
		return nil, fmt.Errorf("encode counters: %w", err)
	}
	return map[string][]byte{BucketStudents: studentData, BucketCounters: counterData}, nil
}

// DecodeBuckets rebuilds the aggregate. Both buckets must be present.
func DecodeBuckets(raw map[string][]byte) (domain.AppState, error) {
	var state domain.AppState
	studentData, ok := raw[BucketStudents]
	if !ok {
		return state, fmt.Errorf("missing bucket %s", BucketStudents)
	}
	counterData, ok := raw[BucketCounters]
	if !ok {
		return state, fmt.Errorf("missing bucket %s", BucketCounters)
	}
	if err := json.Unmarshal(studentData, &state.Students); err != nil {
		return domain.AppState{}, fmt.Errorf("decode students: %w", err)
	}
	var counters domain.Counters
	if err := json.Unmarshal(counterData, &counters); err != nil {
		return domain.AppState{}, fmt.Errorf("decode counters: %w", err)
	}
	state.FormInventory = counters.FormInventory
	state.TotalRevenue = counters.TotalRevenue
	return state, nil
}
