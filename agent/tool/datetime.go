package tool

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

// DateTimeTool reports the current date, time, and day of week in the
// household timezone.
type DateTimeTool struct {
	location *time.Location
	now      func() time.Time
}

var _ Tool = (*DateTimeTool)(nil)

func NewDateTimeTool(location *time.Location) *DateTimeTool {
	if location == nil {
		location = time.UTC
	}
	return &DateTimeTool{location: location, now: time.Now}
}

func (t *DateTimeTool) Describe() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name:        "get_current_datetime",
		Description: "Get the current date, time, and day of week in the household timezone.",
		Parameters:  contractx.ObjectSchema(map[string]any{}),
	}
}

func (t *DateTimeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	now := t.now().In(t.location)
	return fmt.Sprintf(
		"Current date and time:\n  Date: %s\n  Time: %s\n  Day:  %s\n  Timezone: %s",
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		now.Format("Monday"),
		t.location.String(),
	), nil
}
