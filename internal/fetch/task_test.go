package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mlefevre/upc-decisions/internal/decisions"
)

func TestBuildTasksSkipsRecordsWithoutDocuments(t *testing.T) {
	records := []decisions.Record{
		{Registry: "ACT_1/2023", DocumentURL: "https://example.org/a.pdf"},
		{Registry: "ACT_2/2023"},
		{Registry: "ACT_3/2023", DocumentURL: "https://example.org/c.pdf"},
	}

	tasks := BuildTasks(records)
	require.Len(t, tasks, 2)
	require.Equal(t, "ACT_1/2023", tasks[0].Registry)
	require.Equal(t, "ACT_3/2023", tasks[1].Registry)
	for _, task := range tasks {
		require.Equal(t, StatusPending, task.Status)
		require.NotEmpty(t, task.Filename)
	}
}

func TestBuildTasksDisambiguatesCollidingFilenames(t *testing.T) {
	date := time.Date(2023, time.July, 4, 0, 0, 0, 0, time.UTC)
	// Identical date, parties, court, and registry derive the same name;
	// distinct document URLs make them distinct tasks.
	records := []decisions.Record{
		{Date: date, Registry: "ACT_1/2023", Parties: "Alpha v. Beta", Court: "Munich", DocumentURL: "https://example.org/a.pdf"},
		{Date: date, Registry: "ACT_1/2023", Parties: "Alpha v. Beta", Court: "Munich", DocumentURL: "https://example.org/b.pdf"},
	}

	tasks := BuildTasks(records)
	require.Len(t, tasks, 2)
	require.NotEqual(t, tasks[0].Filename, tasks[1].Filename)
	require.Equal(t, tasks[0].Filename[:len(tasks[0].Filename)-4]+"_2.pdf", tasks[1].Filename)
}
