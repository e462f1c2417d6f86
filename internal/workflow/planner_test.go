package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelflow/internal/config"
	"reelflow/internal/joballoc"
	"reelflow/internal/registry"
)

func baseJob(kind registry.WorkflowKind) joballoc.Job {
	return joballoc.Job{
		Workflow:       kind,
		InputMedia:     "/media/in.mkv",
		SourceLanguage: "hi",
		ProcessingMode: config.ModeFull,
	}
}

func TestPlanTranscribeOmitsOptionalStagesByDefault(t *testing.T) {
	plan, err := Plan(baseJob(registry.Transcribe))
	require.NoError(t, err)
	names := StageNames(plan)
	assert.Equal(t, []registry.StageName{
		registry.Demux, registry.TMDB, registry.GlossaryLoad, registry.ASR, registry.Alignment,
	}, names)
}

func TestPlanTranscribeIncludesFlaggedOptionalStages(t *testing.T) {
	job := baseJob(registry.Transcribe)
	job.Features = joballoc.FeatureFlags{SourceSeparation: true, VAD: true, LyricsDetection: true}
	plan, err := Plan(job)
	require.NoError(t, err)
	names := StageNames(plan)
	assert.Equal(t, []registry.StageName{
		registry.Demux, registry.TMDB, registry.GlossaryLoad,
		registry.SourceSeparation, registry.PyannoteVAD,
		registry.ASR, registry.Alignment, registry.LyricsDetection,
	}, names)
}

func TestPlanTranslateAppendsTranslationWithTargetLanguages(t *testing.T) {
	job := baseJob(registry.Translate)
	job.TargetLanguages = []string{"en", "gu"}
	plan, err := Plan(job)
	require.NoError(t, err)
	last := plan[len(plan)-1]
	assert.Equal(t, registry.Translation, last.Descriptor.Name)
	assert.Equal(t, []string{"en", "gu"}, last.TargetLanguages)
}

func TestPlanSubtitleAppendsSubtitleGenerationAndMux(t *testing.T) {
	job := baseJob(registry.Subtitle)
	job.TargetLanguages = []string{"en"}
	plan, err := Plan(job)
	require.NoError(t, err)
	names := StageNames(plan)
	assert.Equal(t, registry.Translation, names[len(names)-3])
	assert.Equal(t, registry.SubtitleGeneration, names[len(names)-2])
	assert.Equal(t, registry.Mux, names[len(names)-1])
}

func TestPlanRejectsUnrecognizedWorkflow(t *testing.T) {
	job := baseJob("bogus")
	_, err := Plan(job)
	assert.Error(t, err)
}
