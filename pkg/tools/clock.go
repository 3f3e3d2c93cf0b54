package tools

import (
	"context"
	"encoding/json"
	"time"
)

// Clock reports the current date and time.
type Clock struct {
	now func() time.Time
}

// NewClock creates the get_current_time tool.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Name implements Tool.
func (*Clock) Name() string { return "get_current_time" }

// Description implements Tool.
func (*Clock) Description() string { return "Get the current date and time" }

// Schema implements Tool.
func (*Clock) Schema() json.RawMessage { return emptyObjectSchema }

// Execute implements Tool.
func (c *Clock) Execute(_ context.Context, _ map[string]any) (string, error) {
	return c.now().Format(time.RFC3339), nil
}
