package schedule

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Schedule is an ordered list of entries. Order is significant: it is the
// order entries were created in and the order results are reported in.
type Schedule []*Entry

// InStage returns the entries currently in stage, preserving order.
func (s Schedule) InStage(stage Stage) Schedule {
	var out Schedule
	for _, e := range s {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Render formats the schedule as a table, one row per entry.
func (s Schedule) Render() string {
	rows := make([][]string, 0, len(s))
	for i, e := range s {
		errMsg := ""
		if e.Err != nil {
			errMsg = e.Err.Error()
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			e.ID,
			e.RunnerCapability,
			e.Environment.String(),
			e.GuestName(),
			e.Stage.String(),
			errMsg,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ID", "RUNNER", "ENVIRONMENT", "GUEST", "STAGE", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render()
}

// Log writes the rendered schedule to logger at debug level, one line per
// table row.
func (s Schedule) Log(logger *slog.Logger, label string) {
	logger.Debug(label, "entries", len(s))
	if len(s) == 0 {
		return
	}
	for _, line := range strings.Split(s.Render(), "\n") {
		logger.Debug(line)
	}
}
