package resources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLister(samples ...ProcSample) Lister {
	return func(context.Context) ([]ProcSample, error) { return samples, nil }
}

func TestProcesses_PopDrains(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	p := NewProcesses(fixedLister(
		ProcSample{User: "root", CPU: 1.5, Memory: 2, RSS: 4096},
		ProcSample{User: "www", CPU: 3, Memory: 1, RSS: 2048},
		ProcSample{User: "root", CPU: 0.5, Memory: 1, RSS: 4096},
	), clock)

	assert.Empty(t, p.PopSnapshots(), "pop without check")

	require.NoError(t, p.Check(context.Background()))
	clock.Advance(time.Minute)
	require.NoError(t, p.Check(context.Background()))

	snaps := p.PopSnapshots()
	require.Len(t, snaps, 2)
	assert.Empty(t, p.PopSnapshots())

	first := snaps[0].([]any)
	assert.Equal(t, 1700000000.0, first[0])
	rows := first[1].([][]any)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"root", 2.0, 3.0, uint64(8), 2}, rows[0])
	assert.Equal(t, "www", rows[1][0])
}

func TestProcesses_DescribeOnce(t *testing.T) {
	p := NewProcesses(fixedLister(), nil)
	assert.Equal(t, ProcessesKey, p.Key())
	assert.Equal(t, 1, p.FormatVersion())
	assert.NotNil(t, p.DescribeFormatIfNeeded())
	assert.Nil(t, p.DescribeFormatIfNeeded())
}

func TestProcesses_ListError(t *testing.T) {
	p := NewProcesses(func(context.Context) ([]ProcSample, error) { return nil, errors.New("denied") }, nil)
	assert.ErrorContains(t, p.Check(context.Background()), "denied")
	assert.Empty(t, p.PopSnapshots())
}
