package hive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "hive.db")
	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func registerTestJob(t *testing.T, s *Store, jobId string) {
	t.Helper()
	_, err := s.RegisterJob(JobRow{
		JobId:           jobId,
		KeyboardHash:    "kbhash-" + jobId,
		KeyboardName:    "ansi60",
		KeyboardJSON:    `{"name":"ansi60"}`,
		ProfileHash:     "profhash-" + jobId,
		WeightsJSON:     `{"penalty_sfb":-8.5}`,
		ConfigHash:      "cfghash-" + jobId,
		ParamsJSON:      `{"epochs":500}`,
		PinnedKeysJSON:  `{}`,
		CorpusName:      "english",
		CostMatrixName:  "default",
		DescriptionJSON: `{}`,
	})
	require.NoError(t, err)
}

func TestRegisterJobIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	inserted, err := s.RegisterJob(JobRow{
		JobId: "job-1", KeyboardHash: "kb1", KeyboardName: "ansi60", KeyboardJSON: "{}",
		ProfileHash: "p1", WeightsJSON: "{}", ConfigHash: "c1", ParamsJSON: "{}",
		PinnedKeysJSON: "{}", CorpusName: "english", CostMatrixName: "default", DescriptionJSON: "{}",
	})
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.RegisterJob(JobRow{
		JobId: "job-1", KeyboardHash: "kb1", KeyboardName: "ansi60", KeyboardJSON: "{}",
		ProfileHash: "p1", WeightsJSON: "{}", ConfigHash: "c1", ParamsJSON: "{}",
		PinnedKeysJSON: "{}", CorpusName: "english", CostMatrixName: "default", DescriptionJSON: "{}",
	})
	require.NoError(t, err)
	require.False(t, inserted, "re-registering the same job_id must not insert a duplicate row")
}

// TestSubmitResultMonotoneLeaderboard is spec.md §8's leaderboard test
// vector: submitting scores [500, 480, 500, 470, 485] (lower is better)
// must leave the best_score trace [500, 480, 480, 470, 470], accepting
// only strict improvements.
func TestSubmitResultMonotoneLeaderboard(t *testing.T) {
	s := openTestStore(t)
	registerTestJob(t, s, "job-1")

	scores := []float64{500, 480, 500, 470, 485}
	wantBest := []float64{500, 480, 480, 470, 470}
	wantAccepted := []bool{true, true, false, true, false}

	for i, score := range scores {
		accepted, err := s.SubmitResult("job-1", "node-a", "layout", score)
		require.NoError(t, err)
		require.Equal(t, wantAccepted[i], accepted, "submission %d", i)

		status, err := s.GetStatus("job-1", time.Hour)
		require.NoError(t, err)
		require.NotNil(t, status.BestScore)
		require.Equal(t, wantBest[i], *status.BestScore, "submission %d", i)
	}
}

func TestGetStatusReturnsErrJobNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetStatus("no-such-job", time.Hour)
	require.Error(t, err)
	var notFound ErrJobNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestHeartbeatTracksActiveNodes(t *testing.T) {
	s := openTestStore(t)
	registerTestJob(t, s, "job-1")

	require.NoError(t, s.Heartbeat("node-a", "job-1", "cpu-sig", 8, 1000))
	require.NoError(t, s.Heartbeat("node-b", "job-1", "cpu-sig", 4, 500))

	status, err := s.GetStatus("job-1", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, status.ActiveNodes)
}

func TestGetActiveJobSkipsSaturatedJobs(t *testing.T) {
	s := openTestStore(t)
	registerTestJob(t, s, "job-1")

	_, err := s.SubmitResult("job-1", "node-a", "layout", 500)
	require.NoError(t, err)

	active, err := s.GetActiveJob(1)
	require.NoError(t, err)
	require.Nil(t, active, "a job with >= resultSaturation accepted results must not be assignable")

	active, err = s.GetActiveJob(2)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, "job-1", active.JobId)
}
