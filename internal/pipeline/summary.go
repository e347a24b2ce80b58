package pipeline

import (
	"fmt"

	"github.com/specialistvlad/cipipe/internal/failure"
)

// Summary is the outcome of a pipeline as reported to the outside world.
type Summary struct {
	RunID   string `json:"run_id"`
	Result  string `json:"result"`
	Module  string `json:"module,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// Summarize describes how the run runID ended. A nil f means it passed.
func Summarize(runID string, f *failure.Failure) Summary {
	s := Summary{RunID: runID, Result: Result(f)}
	if f != nil {
		s.Module = f.Module
		s.Kind = failure.KindOf(f.Err).String()
		s.Message = fmt.Sprint(f.Err)
	}
	return s
}
