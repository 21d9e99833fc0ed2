package service

import (
	"clipper/api/internal/model"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupSteps(t *testing.T) {
	database := newTestDB(t)

	old := time.Now().Add(-60 * 24 * time.Hour)
	recent := time.Now().Add(-time.Hour)

	runs := []model.WorkflowRun{
		{ID: "old-done", Function: "fn", Event: "ev", Status: model.RunCompleted, FinishedAt: &old},
		{ID: "recent-done", Function: "fn", Event: "ev", Status: model.RunCompleted, FinishedAt: &recent},
		{ID: "running", Function: "fn", Event: "ev", Status: model.RunRunning},
	}
	require.NoError(t, database.Create(&runs).Error)

	for _, run := range runs {
		require.NoError(t, database.Create(&model.WorkflowStep{RunID: run.ID, Name: "step", Output: "{}"}).Error)
	}

	n, err := CleanupSteps(context.Background(), database, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var left []string
	require.NoError(t, database.Model(&model.WorkflowStep{}).Order("run_id").Pluck("run_id", &left).Error)
	assert.Equal(t, []string{"recent-done", "running"}, left)
}

func TestStepCleanup_InvalidSchedule(t *testing.T) {
	_, err := StepCleanup(newTestDB(t), "not a schedule", time.Hour)
	assert.Error(t, err)
}

func TestMailer_DisabledIsNoop(t *testing.T) {
	m := &Mailer{}
	assert.False(t, m.Enabled())
	assert.NoError(t, m.SendWelcome("user@example.com", 10))
}

func TestWelcomeMessage(t *testing.T) {
	msg, err := welcomeMessage("noreply@example.com", "user@example.com", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"user@example.com"}, msg.GetHeader("To"))

	_, err = welcomeMessage("noreply@example.com", "noreply@example.com", 10)
	assert.Error(t, err)
}
