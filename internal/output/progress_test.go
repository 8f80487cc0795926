package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"ghrest.dev/ghrest/internal/pipeline"
)

func TestStageModel(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	t.Run("marks earlier stages done", func(t *testing.T) {
		m := newStageModel("write")
		m.Update(stageMsg{stage: pipeline.StageBuildingTree})

		view := m.View()
		require.True(t, strings.HasPrefix(view, "write\n"))
		require.Contains(t, view, "✓ resolving ref")
		require.Contains(t, view, "building tree...")
		require.Contains(t, view, "○")
	})

	t.Run("failure marks the current stage", func(t *testing.T) {
		m := newStageModel("move")
		m.Update(stageMsg{stage: pipeline.StageCreatingCommit})
		m.Update(stageMsg{stage: pipeline.StageFailed})

		require.True(t, m.failed)
		require.Equal(t, pipeline.StageCreatingCommit, m.current)
		require.Contains(t, m.View(), "✗")
	})

	t.Run("done marks everything complete", func(t *testing.T) {
		m := newStageModel("write")
		m.Update(stageMsg{stage: pipeline.StageAdvancingRef})
		m.Update(stageMsg{stage: pipeline.StageDone})

		require.Equal(t, len(writeStages), strings.Count(m.View(), "✓"))
	})
}

func TestSimplePipelineProgress(t *testing.T) {
	var buf bytes.Buffer
	splog, err := NewSplogWithOptions(SplogOptions{Writer: &buf, Debug: true})
	require.NoError(t, err)

	p := NewSimplePipelineProgress(splog)
	p.Observe("write", pipeline.StageUploadingBlobs)
	p.Observe("write", pipeline.StageDone)
	p.Complete()

	require.Equal(t, "  ⋯ write: uploading blobs\n  ✓ write done\n", buf.String())
}
