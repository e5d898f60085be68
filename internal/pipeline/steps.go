package pipeline

import (
	"context"
	"strings"

	"reelsmith/internal/apikeys"
	"reelsmith/internal/campaign"
	"reelsmith/internal/captions"
	"reelsmith/internal/logging"
	"reelsmith/internal/prompt"
	"reelsmith/internal/services"
	"reelsmith/internal/services/replicate"
	"reelsmith/internal/stepexec"
	"reelsmith/internal/storage"
	"reelsmith/internal/store"
)

// Skip reasons recorded in the execution log.
const (
	SkipNoImagePrompt       = "template has no image prompt"
	SkipNoVideoPrompt       = "template has no video prompt"
	SkipNoVoice             = "persona has no voice configured"
	SkipNoNarration         = "template has no narration"
	SkipLipSyncDisabled     = "lip-sync disabled"
	SkipNoNarrationAudio    = "no narration audio"
	SkipNoReferenceImage    = "persona has no reference image"
	SkipNoImageToCompose    = "no image to compose"
	SkipOverlayDisabled     = "overlay disabled"
	SkipNoOverlayText       = "no overlay text"
	SkipNoCaptionsNarration = "template has no narration for captions"
)

func (o *Orchestrator) imageStep(ctx context.Context, run *Run) (stepexec.Outcome, error) {
	tmpl := run.Template
	if strings.TrimSpace(tmpl.ImagePromptTemplate) == "" {
		return stepexec.Skipped(SkipNoImagePrompt), nil
	}
	params := replicate.ImageParams{
		Prompt:      prompt.Resolve(tmpl.ImagePromptTemplate, run.Variables, run.Persona.BasePrompt),
		Model:       firstNonEmpty(run.Options.ImageModel, tmpl.DefaultImageModel, o.defaults.ImageModel, campaign.DefaultImageModel),
		AspectRatio: firstNonEmpty(run.Options.AspectRatio, tmpl.DefaultAspectRatio, o.defaults.AspectRatio, campaign.DefaultAspectRatio),
	}
	result, err := o.generator.GenerateImage(ctx, run.ReplicateKey, params)
	if err != nil {
		return stepexec.Outcome{}, err
	}
	if err := o.save(ctx, run.Campaign.ID, store.CampaignPatch{
		ImageURL:      &result.OutputURL,
		ImagePublicID: &result.PublicID,
	}); err != nil {
		return stepexec.Outcome{}, err
	}
	return stepexec.Completed("image generated: " + result.OutputURL), nil
}

func (o *Orchestrator) videoStep(ctx context.Context, run *Run, current *campaign.Campaign) (stepexec.Outcome, error) {
	tmpl := run.Template
	if strings.TrimSpace(tmpl.VideoPromptTemplate) == "" {
		return stepexec.Skipped(SkipNoVideoPrompt), nil
	}
	params := replicate.VideoParams{
		Prompt:         prompt.Resolve(tmpl.VideoPromptTemplate, run.Variables, run.Persona.BasePrompt),
		Model:          firstNonEmpty(run.Options.VideoModel, tmpl.DefaultVideoModel, o.defaults.VideoModel, campaign.DefaultVideoModel),
		SourceImageURL: firstNonEmpty(current.ImageURL, run.Persona.ReferenceImageURL),
		Duration:       firstPositive(run.Options.VideoDuration, tmpl.DefaultVideoDuration, o.defaults.VideoDuration, campaign.DefaultVideoDuration),
	}
	result, err := o.generator.GenerateVideo(ctx, run.ReplicateKey, params)
	if err != nil {
		return stepexec.Outcome{}, err
	}
	thumbnail := result.ThumbnailURL
	if thumbnail == "" && o.compositor != nil && result.PublicID != "" {
		if asset, err := o.compositor.ExtractThumbnail(ctx, result.PublicID); err == nil {
			thumbnail = asset.URL
		} else {
			logging.WithContext(ctx, o.logger).Debug("video thumbnail unavailable", logging.Error(err))
		}
	}
	if err := o.save(ctx, run.Campaign.ID, store.CampaignPatch{
		VideoURL:          &result.OutputURL,
		VideoPublicID:     &result.PublicID,
		VideoThumbnailURL: &thumbnail,
	}); err != nil {
		return stepexec.Outcome{}, err
	}
	return stepexec.Completed("video generated: " + result.OutputURL), nil
}

func (o *Orchestrator) audioStep(ctx context.Context, run *Run) (stepexec.Outcome, error) {
	voiceID := strings.TrimSpace(run.Persona.VoiceID)
	if voiceID == "" {
		return stepexec.Skipped(SkipNoVoice), nil
	}
	if strings.TrimSpace(run.Template.NarrationTemplate) == "" {
		return stepexec.Skipped(SkipNoNarration), nil
	}
	key, err := o.keys.Get(ctx, run.UserID, apikeys.ProviderElevenLabs)
	if err != nil {
		return stepexec.Outcome{}, err
	}
	if strings.TrimSpace(key) == "" {
		return stepexec.Outcome{}, services.Wrap(services.ErrConfiguration, "", "", "ElevenLabs API key not configured", nil)
	}
	text := prompt.ResolveNarration(run.Template.NarrationTemplate, run.Variables)
	speech, err := o.narrator.GenerateSpeech(ctx, key, voiceID, text)
	if err != nil {
		return stepexec.Outcome{}, err
	}
	if err := o.save(ctx, run.Campaign.ID, store.CampaignPatch{
		AudioURL:      &speech.AudioURL,
		AudioPublicID: &speech.PublicID,
	}); err != nil {
		return stepexec.Outcome{}, err
	}
	return stepexec.Completed("audio generated: " + speech.AudioURL), nil
}

// lipSyncStep checks its preconditions in a fixed priority so the recorded
// reason never depends on which other inputs happen to be missing.
func (o *Orchestrator) lipSyncStep(ctx context.Context, run *Run, current *campaign.Campaign) (stepexec.Outcome, error) {
	enabled := current.UseLipSync
	if run.Options.UseLipSync != nil {
		enabled = *run.Options.UseLipSync
	}
	switch {
	case !enabled:
		return stepexec.Skipped(SkipLipSyncDisabled), nil
	case current.AudioURL == "":
		return stepexec.Skipped(SkipNoNarrationAudio), nil
	case strings.TrimSpace(run.Persona.ReferenceImageURL) == "":
		return stepexec.Skipped(SkipNoReferenceImage), nil
	}
	params := replicate.LipSyncParams{
		Model:    firstNonEmpty(run.Options.LipSyncModel, current.LipSyncModel, o.defaults.LipSyncModel, campaign.DefaultLipSyncModel),
		ImageURL: firstNonEmpty(current.ImageURL, run.Persona.ReferenceImageURL),
		AudioURL: current.AudioURL,
	}
	result, err := o.generator.GenerateLipSync(ctx, run.ReplicateKey, params)
	if err != nil {
		return stepexec.Outcome{}, err
	}
	if err := o.save(ctx, run.Campaign.ID, store.CampaignPatch{
		LipSyncVideoURL:      &result.OutputURL,
		LipSyncVideoPublicID: &result.PublicID,
	}); err != nil {
		return stepexec.Outcome{}, err
	}
	return stepexec.Completed("lip-sync video generated: " + result.OutputURL), nil
}

func (o *Orchestrator) composeStep(ctx context.Context, run *Run, current *campaign.Campaign) (stepexec.Outcome, error) {
	overlay := run.Template.Overlay
	switch {
	case current.ImagePublicID == "":
		return stepexec.Skipped(SkipNoImageToCompose), nil
	case overlay == nil || !overlay.Enabled:
		return stepexec.Skipped(SkipOverlayDisabled), nil
	case strings.TrimSpace(overlay.Text) == "":
		return stepexec.Skipped(SkipNoOverlayText), nil
	}
	if o.compositor == nil {
		return stepexec.Outcome{}, services.Wrap(services.ErrConfiguration, "", "", "composition not configured", nil)
	}
	text := prompt.Resolve(overlay.Text, run.Variables, "")
	asset, err := o.compositor.ApplyTextOverlay(ctx, current.ImagePublicID, text, *overlay)
	if err != nil {
		return stepexec.Outcome{}, err
	}
	if err := o.save(ctx, run.Campaign.ID, store.CampaignPatch{
		ComposedImageURL:      &asset.URL,
		ComposedImagePublicID: &asset.PublicID,
	}); err != nil {
		return stepexec.Outcome{}, err
	}
	return stepexec.Completed("composed image generated: " + asset.URL), nil
}

// captionsStep always stores the SRT track and segment data. Burning the
// captions into the video is best effort: a nil composition keeps the step
// completed.
func (o *Orchestrator) captionsStep(ctx context.Context, run *Run, current *campaign.Campaign) (stepexec.Outcome, error) {
	if strings.TrimSpace(run.Template.NarrationTemplate) == "" {
		return stepexec.Skipped(SkipNoCaptionsNarration), nil
	}
	if current.AudioURL == "" {
		return stepexec.Skipped(SkipNoNarrationAudio), nil
	}

	text := prompt.ResolveNarration(run.Template.NarrationTemplate, run.Variables)
	mode := current.CaptionSegmentationMode
	if mode == "" {
		mode = o.defaults.CaptionMode
	}
	if mode == "" {
		mode = captions.ModeTimed
	}
	duration := captions.EstimateDuration(text)
	segments := captions.GenerateSegments(text, duration, mode)

	srt, err := o.assets.PutBytes(ctx, storage.FolderSubtitles, ".srt", []byte(captions.GenerateSRT(segments)))
	if err != nil {
		return stepexec.Outcome{}, services.Wrap(services.ErrTransient, "captions", "store srt", "", err)
	}
	data := &campaign.SubtitleData{
		Segments:         segments,
		TotalDuration:    duration,
		SegmentationMode: mode,
		GeneratedAt:      o.now(),
	}
	if err := o.save(ctx, run.Campaign.ID, store.CampaignPatch{SRTURL: &srt.URL, Subtitles: data}); err != nil {
		return stepexec.Outcome{}, err
	}

	if current.VideoURL == "" || o.compositor == nil {
		return stepexec.Completed("captions generated (SRT): " + srt.URL), nil
	}

	presetID := firstNonEmpty(run.Options.CaptionPresetID, current.CaptionPresetID, o.defaults.CaptionPreset)
	overrides := run.Options.CaptionCustomStyle
	if overrides == nil {
		overrides = current.CaptionCustomStyle
	}
	style := captions.ResolveStyle(presetID, overrides)
	width := firstPositive(o.defaults.VideoWidth, 1080)
	height := firstPositive(o.defaults.VideoHeight, 1920)

	composed := o.compositor.ComposeVideoWithCaptions(ctx, current.VideoURL, captions.GenerateASS(segments, style, width, height))
	if composed == nil {
		return stepexec.Completed("captions generated (SRT): " + srt.URL), nil
	}
	if err := o.save(ctx, run.Campaign.ID, store.CampaignPatch{
		ComposedVideoURL:      &composed.URL,
		ComposedVideoPublicID: &composed.PublicID,
	}); err != nil {
		return stepexec.Outcome{}, err
	}
	return stepexec.Completed("captions generated with composed video: " + composed.URL), nil
}
