// SPDX-License-Identifier: MPL-2.0

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type (
	jsonReport struct {
		Started  time.Time         `json:"started"`
		Duration float64           `json:"duration_seconds"`
		ExitCode int               `json:"exit_code"`
		Envs     []jsonEnvironment `json:"environments"`
	}

	jsonEnvironment struct {
		Name        string   `json:"name"`
		Status      Status   `json:"status"`
		FailedIndex *int     `json:"failed_index,omitempty"`
		ExitCode    int      `json:"exit_code"`
		Command     []string `json:"command,omitempty"`
		Step        string   `json:"step,omitempty"`
		Error       string   `json:"error,omitempty"`
		Duration    float64  `json:"duration_seconds"`
	}
)

// MarshalJSON renders the report with stable field names.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := jsonReport{
		Started:  r.Started,
		Duration: r.Duration.Seconds(),
		ExitCode: r.ExitCode(),
		Envs:     make([]jsonEnvironment, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		env := jsonEnvironment{
			Name:     res.Name,
			Status:   res.Status,
			ExitCode: res.ExitCode,
			Command:  res.Command,
			Step:     res.Step,
			Duration: res.Duration.Seconds(),
		}
		if res.Status == StatusFailed || res.Status == StatusInterrupted {
			idx := res.FailedIndex
			if idx >= 0 {
				env.FailedIndex = &idx
			}
		}
		if res.Error != nil {
			env.Error = res.Error.Error()
		}
		out.Envs = append(out.Envs, env)
	}
	return json.Marshal(out)
}

// WriteJSON writes the report to path.
func WriteJSON(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
