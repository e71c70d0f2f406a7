// Package checkpoint persists validation progress so interrupted runs
// can resume without re-executing completed targets. Each run owns one
// session document on disk; checkpoints append to it as stages finish,
// and a matching later run adopts the document instead of starting over.
package checkpoint

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/stage"
)

// Checkpoint records the outcome of one stage for one target.
type Checkpoint struct {
	TargetName           string         `json:"target_name"`
	Stage                string         `json:"stage"`
	Status               string         `json:"status"`
	Timestamp            time.Time      `json:"timestamp"`
	ResultData           map[string]any `json:"result_data,omitempty"`
	ExecutionTimeSeconds float64        `json:"execution_time_seconds"`
}

// Session is the on-disk session document. Field names are part of the
// file contract; external tooling reads these files.
type Session struct {
	SessionID      string       `json:"session_id"`
	OperationType  string       `json:"operation_type"`
	StartedAt      time.Time    `json:"started_at"`
	LastUpdated    time.Time    `json:"last_updated"`
	TotalTargets   int          `json:"total_targets"`
	CompletedCount int          `json:"completed_count"`
	FailedCount    int          `json:"failed_count"`
	SkippedCount   int          `json:"skipped_count"`
	Checkpoints    []Checkpoint `json:"checkpoints"`
	ConfigFileHash string       `json:"config_file_hash"`
}

// resultPayload is the result_data schema: the serialized CheckResult,
// plus target-level advisories attached to the final stage entry.
type resultPayload struct {
	Stage      string         `mapstructure:"stage" json:"stage"`
	Status     string         `mapstructure:"status" json:"status"`
	Message    string         `mapstructure:"message" json:"message,omitempty"`
	Details    map[string]any `mapstructure:"details" json:"details,omitempty"`
	Critical   bool           `mapstructure:"critical" json:"critical,omitempty"`
	ErrorKind  string         `mapstructure:"error_kind" json:"error_kind,omitempty"`
	Advisories []string       `mapstructure:"advisories" json:"advisories,omitempty"`
}

// encodeResult serializes a CheckResult into result_data form.
func encodeResult(res stage.CheckResult) map[string]any {
	data := map[string]any{
		"stage":  string(res.Stage),
		"status": string(res.Status),
	}
	if res.Message != "" {
		data["message"] = res.Message
	}
	if len(res.Details) > 0 {
		data["details"] = res.Details
	}
	if res.Critical {
		data["critical"] = true
	}
	if res.ErrorKind != stage.ErrKindNone {
		data["error_kind"] = string(res.ErrorKind)
	}
	return data
}

// decodeResult rebuilds a CheckResult from result_data. Sessions written
// by hand or by older builds may carry loosely typed values, so decoding
// is weakly typed the whole way down.
func decodeResult(data map[string]any) (stage.CheckResult, []string, error) {
	var payload resultPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &payload,
	})
	if err != nil {
		return stage.CheckResult{}, nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return stage.CheckResult{}, nil, fmt.Errorf("malformed result_data: %w", err)
	}

	res := stage.CheckResult{
		Stage:     stage.Name(payload.Stage),
		Status:    stage.Status(payload.Status),
		Message:   payload.Message,
		Details:   payload.Details,
		Critical:  payload.Critical,
		ErrorKind: stage.ErrorKind(payload.ErrorKind),
	}
	return res, payload.Advisories, nil
}
