package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlearn/progress-hub/config"
	"github.com/sqlearn/progress-hub/pkg/logger"
)

const jan1 = "2024-01-01T10:00:00Z"

// testEnv runs commands against one sqlite file so state survives between runs.
type testEnv struct {
	t    *testing.T
	vars map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	return &testEnv{t: t, vars: map[string]string{
		"DB_DRIVER": "sqlite",
		"DB_DSN":    filepath.Join(t.TempDir(), "progress.db"),
	}}
}

func (e *testEnv) loader(*RootOptions) (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadFrom(e.vars)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.Nop(), nil
}

func (e *testEnv) run(args ...string) (code int, stdout, stderr string) {
	e.t.Helper()
	root := NewRootCommand(e.loader)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	code = Execute(root)
	return code, out.String(), errOut.String()
}

func decodeData(t *testing.T, raw string, data any) {
	t.Helper()
	resp := struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal([]byte(raw), &resp), raw)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, data))
}

func TestRootCommand_RegistersCommands(t *testing.T) {
	root := NewRootCommand(nil)

	for _, name := range []string{
		"complete-lesson", "award", "penalize", "bookmark", "reset-lesson",
		"stats", "achievements", "history", "streak-scan", "migrate",
	} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("format"))
	assert.NotNil(t, root.PersistentFlags().ShorthandLookup("v"))
}

func TestCompleteLesson_JSON(t *testing.T) {
	env := newTestEnv(t)

	code, out, _ := env.run("complete-lesson", "alice", "select-basics",
		"--score", "80", "--time", "120", "--at", jan1, "--format", "json")
	require.Equal(t, ExitSuccess, code, out)

	var data struct {
		Result struct {
			XP struct {
				XPAwarded int64 `json:"xp_awarded"`
				LeveledUp bool  `json:"leveled_up"`
			} `json:"xp"`
			Stats struct {
				LessonsCompleted int `json:"lessons_completed"`
				CurrentStreak    int `json:"current_streak"`
			} `json:"stats"`
		} `json:"result"`
		Notifications []struct {
			Type string `json:"type"`
		} `json:"notifications"`
	}
	decodeData(t, out, &data)

	assert.Equal(t, int64(125), data.Result.XP.XPAwarded)
	assert.True(t, data.Result.XP.LeveledUp)
	assert.Equal(t, 1, data.Result.Stats.LessonsCompleted)
	assert.Equal(t, 1, data.Result.Stats.CurrentStreak)

	var types []string
	for _, n := range data.Notifications {
		types = append(types, n.Type)
	}
	assert.Contains(t, types, "level_up")
	assert.Contains(t, types, "achievement")
}

func TestCompleteLesson_InvalidAt(t *testing.T) {
	env := newTestEnv(t)

	code, _, stderr := env.run("complete-lesson", "alice", "l1", "--at", "yesterday")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "invalid --at")
}

func TestStats_Text(t *testing.T) {
	env := newTestEnv(t)
	code, _, _ := env.run("complete-lesson", "alice", "select-basics", "--score", "80", "--at", jan1)
	require.Equal(t, ExitSuccess, code)

	code, out, _ := env.run("stats", "alice")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "User:")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "1 completed of 1 started")
}

func TestAwardAndPenalize(t *testing.T) {
	env := newTestEnv(t)

	code, out, _ := env.run("award", "bob", "150", "--format", "json")
	require.Equal(t, ExitSuccess, code, out)
	var res struct {
		TotalXP  int64 `json:"total_xp"`
		NewLevel int   `json:"new_level"`
	}
	decodeData(t, out, &res)
	assert.Equal(t, int64(150), res.TotalXP)
	assert.Equal(t, 2, res.NewLevel)

	code, out, _ = env.run("penalize", "bob", "100", "--format", "json")
	require.Equal(t, ExitSuccess, code, out)
	decodeData(t, out, &res)
	assert.Equal(t, int64(50), res.TotalXP)
	assert.Equal(t, 1, res.NewLevel)

	code, out, _ = env.run("penalize", "bob", "1000", "--format", "json")
	assert.Equal(t, ExitFailure, code)
	var failed CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &failed))
	assert.Equal(t, "error", failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "invalid_input", failed.Error.Code)
}

func TestAward_InvalidAmount(t *testing.T) {
	env := newTestEnv(t)

	code, _, stderr := env.run("award", "bob", "lots")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "invalid amount")
}

func TestHistory_Limit(t *testing.T) {
	env := newTestEnv(t)
	for _, amount := range []string{"10", "20", "30"} {
		code, _, _ := env.run("award", "carol", amount)
		require.Equal(t, ExitSuccess, code)
	}

	code, out, _ := env.run("history", "carol", "--limit", "2", "--format", "json")
	require.Equal(t, ExitSuccess, code, out)
	var entries []struct {
		Amount int64 `json:"amount"`
	}
	decodeData(t, out, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(30), entries[0].Amount)
}

func TestBookmarkAndReset(t *testing.T) {
	env := newTestEnv(t)

	code, out, _ := env.run("bookmark", "dave", "joins", "--format", "json")
	require.Equal(t, ExitSuccess, code, out)
	var rec struct {
		IsBookmarked bool `json:"is_bookmarked"`
	}
	decodeData(t, out, &rec)
	assert.True(t, rec.IsBookmarked)

	code, _, _ = env.run("reset-lesson", "dave", "joins")
	require.Equal(t, ExitSuccess, code)

	code, out, _ = env.run("stats", "dave", "--format", "json")
	require.Equal(t, ExitSuccess, code, out)
	var summary struct {
		LessonsStarted int `json:"lessons_started"`
	}
	decodeData(t, out, &summary)
	assert.Zero(t, summary.LessonsStarted)
}

func TestAchievements_EarnedOnly(t *testing.T) {
	env := newTestEnv(t)
	code, _, _ := env.run("complete-lesson", "erin", "select-basics", "--score", "80", "--at", jan1)
	require.Equal(t, ExitSuccess, code)

	code, out, _ := env.run("achievements", "erin", "--earned", "--format", "json")
	require.Equal(t, ExitSuccess, code, out)
	var list struct {
		Earned    []json.RawMessage `json:"earned"`
		Available []json.RawMessage `json:"available"`
	}
	decodeData(t, out, &list)
	assert.NotEmpty(t, list.Earned)
	assert.Empty(t, list.Available)
}

func TestStreakScan_RemindsYesterdaysLearners(t *testing.T) {
	env := newTestEnv(t)
	code, _, _ := env.run("complete-lesson", "frank", "select-basics", "--score", "60", "--at", jan1)
	require.Equal(t, ExitSuccess, code)

	code, out, _ := env.run("streak-scan", "--at", "2024-01-02T19:00:00Z", "--format", "json")
	require.Equal(t, ExitSuccess, code, out)
	var scan struct {
		Run struct {
			Day       string `json:"day"`
			Published int    `json:"published"`
		} `json:"run"`
		Notifications []struct {
			Type        string `json:"type"`
			RecipientID string `json:"recipient_id"`
		} `json:"notifications"`
	}
	decodeData(t, out, &scan)
	assert.Equal(t, "2024-01-02", scan.Run.Day)
	assert.Equal(t, 1, scan.Run.Published)
	require.Len(t, scan.Notifications, 1)
	assert.Equal(t, "streak_reminder", scan.Notifications[0].Type)
	assert.Equal(t, "frank", scan.Notifications[0].RecipientID)
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	env := newTestEnv(t)

	code, _, stderr := env.run("migrate", "--status")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "DB_DRIVER=postgres")
}

func TestInvalidFormat(t *testing.T) {
	env := newTestEnv(t)

	code, _, stderr := env.run("stats", "alice", "--format", "yaml")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "invalid format")
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "command_error", ErrorCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, "internal", ErrorCode(assert.AnError))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
