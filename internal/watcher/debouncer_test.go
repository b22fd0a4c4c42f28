package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_BurstBecomesOneEvent(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	// When: the corpus is written five times in quick succession
	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "/data/movies.json", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(5 * time.Millisecond)
	}

	// Then: one MODIFY comes out
	batch := waitBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_Folding(t *testing.T) {
	tests := []struct {
		name  string
		ops   []Operation
		want  Operation
		empty bool
	}{
		{name: "create then modify", ops: []Operation{OpCreate, OpModify}, want: OpCreate},
		{name: "delete then create", ops: []Operation{OpDelete, OpCreate}, want: OpModify},
		{name: "modify then delete", ops: []Operation{OpModify, OpDelete}, want: OpDelete},
		{name: "create then delete", ops: []Operation{OpCreate, OpDelete}, empty: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(20 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "movies.json", Operation: op})
			}

			if tt.empty {
				select {
				case batch := <-d.Output():
					t.Fatalf("expected no batch, got %v", batch)
				case <-time.After(100 * time.Millisecond):
				}
				return
			}
			batch := waitBatch(t, d)
			require.Len(t, batch, 1)
			assert.Equal(t, tt.want, batch[0].Operation)
		})
	}
}

func TestDebouncer_KeepsFirstSeenOrder(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "b", Operation: OpModify})
	d.Add(FileEvent{Path: "a", Operation: OpModify})
	d.Add(FileEvent{Path: "b", Operation: OpModify})

	batch := waitBatch(t, d)
	require.Len(t, batch, 2)
	assert.Equal(t, "b", batch[0].Path)
	assert.Equal(t, "a", batch[1].Path)
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Add(FileEvent{Path: "a", Operation: OpModify})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "b", Operation: OpModify})

	_, ok := <-d.Output()
	assert.False(t, ok, "output should be closed")
}
