package rules

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/cipipe/internal/failure"
)

// LoadInstructions reads a YAML list of instructions from path.
//
//   - rule: ARCH == 'x86_64'
//     log: building on intel
//   - log: always printed
func LoadInstructions(path string) ([]Instruction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Wrap(failure.KindConfig, err, "failed to read instructions file '%s'", path)
	}
	return ParseInstructions(data)
}

// ParseInstructions decodes a YAML list of instructions.
func ParseInstructions(data []byte) ([]Instruction, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, failure.Wrap(failure.KindConfig, err, "invalid instructions")
	}

	instructions := make([]Instruction, 0, len(raw))
	for i, item := range raw {
		if item == nil {
			return nil, failure.Config("instruction #%d is empty", i+1)
		}
		if rule, ok := item[RuleKey]; ok {
			switch rule.(type) {
			case string, bool:
			default:
				return nil, failure.Config("instruction #%d: rule must be a string, got %T", i+1, rule)
			}
		}
		instructions = append(instructions, Instruction(item))
	}
	return instructions, nil
}
