package doctor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		s    Severity
		want string
	}{
		{SeverityPass, "pass"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{Severity(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.String())
		})
	}
}

func TestRunner_Run(t *testing.T) {
	ok := NewMockCheck(t)
	ok.On("Name").Return("ok").Maybe()
	ok.On("Category").Return("test").Maybe()
	ok.On("Run", mock.Anything).Return(&CheckResult{Status: SeverityPass, Message: "fine"})

	warn := NewMockCheck(t)
	warn.On("Name").Return("warn").Maybe()
	warn.On("Category").Return("test").Maybe()
	warn.On("Run", mock.Anything).Return(&CheckResult{Name: "custom", Status: SeverityWarning})

	fail := NewMockCheck(t)
	fail.On("Name").Return("fail").Maybe()
	fail.On("Category").Return("other").Maybe()
	fail.On("Run", mock.Anything).Return(&CheckResult{Status: SeverityError})

	info := NewMockCheck(t)
	info.On("Name").Return("info").Maybe()
	info.On("Category").Return("other").Maybe()
	info.On("Run", mock.Anything).Return(nil)

	r := NewRunner()
	r.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("x", 3600)) }
	for _, c := range []Check{ok, warn, fail, info} {
		r.AddCheck(c)
	}
	require.Len(t, r.Checks(), 4)

	report := r.Run(context.Background())
	require.Len(t, report.Results, 4)
	assert.Equal(t, time.UTC, report.Timestamp.Location())

	assert.Equal(t, "ok", report.Results[0].Name)
	assert.Equal(t, "test", report.Results[0].Category)
	assert.Equal(t, "custom", report.Results[1].Name, "a result's own name wins")
	assert.Equal(t, "info", report.Results[3].Name)
	assert.Equal(t, SeverityPass, report.Results[3].Status, "a nil result counts as a pass")

	assert.Equal(t, Summary{Passed: 2, Warnings: 1, Errors: 1}, report.Summary)
	assert.True(t, report.HasErrors())
	assert.True(t, report.HasWarnings())
}

func TestReport_JSON(t *testing.T) {
	report := &Report{
		Results: []*CheckResult{{Name: "a", Category: "c", Status: SeverityWarning, Message: "m"}},
		Summary: Summary{Warnings: 1},
	}
	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"warning"`)
	assert.NotContains(t, string(data), "fix_hint")
}

type fixableCheck struct {
	MockCheck
	fixed bool
}

func (f *fixableCheck) CanFix() bool { return !f.fixed }

func (f *fixableCheck) Fix(context.Context) []FixResult {
	f.fixed = true
	return []FixResult{{Path: "x", Fixed: true, Description: "done"}}
}

func TestRunner_Fix(t *testing.T) {
	plain := NewMockCheck(t)
	fc := &fixableCheck{}

	r := NewRunner()
	r.AddCheck(plain)
	r.AddCheck(fc)

	results := r.Fix(context.Background())
	require.Len(t, results, 1)
	assert.True(t, results[0].Fixed)

	assert.Empty(t, r.Fix(context.Background()), "nothing left to fix")
}

func TestUnavailable(t *testing.T) {
	r := NewRunner()
	r.AddCheck(Unavailable("backup-store", "store", assert.AnError, "check it"))

	report := r.Run(context.Background())
	require.Len(t, report.Results, 1)
	got := report.Results[0]
	assert.Equal(t, "backup-store", got.Name)
	assert.Equal(t, "store", got.Category)
	assert.Equal(t, SeverityError, got.Status)
	assert.Equal(t, assert.AnError.Error(), got.Message)
	assert.Equal(t, "check it", got.FixHint)
}
