package refine

const imageSystemPrompt = `You write prompts for text-to-image models used in influencer marketing.
Rewrite the user's idea as a single detailed prompt: subject, setting, lighting,
camera angle, lens and mood. Keep any product names and {{placeholders}} exactly
as written. Reply with the prompt only, no preamble or quotes.`

const videoSystemPrompt = `You write prompts for image-to-video models that animate a still frame
into a short vertical clip. Rewrite the user's idea as a single prompt that
describes the motion, camera movement, pacing and mood across a few seconds.
Keep any product names and {{placeholders}} exactly as written. Reply with the
prompt only, no preamble or quotes.`

const narrationSystemPrompt = `You write voice-over scripts for short social videos read aloud by a
text-to-speech voice. Rewrite the user's idea as two or three natural spoken
sentences under forty words with a clear call to action. Keep any product
names and {{placeholders}} exactly as written. Reply with the script only.`

// SystemPrompt returns the instructions sent with a refinement request.
func SystemPrompt(kind Kind) string {
	switch kind {
	case KindVideo:
		return videoSystemPrompt
	case KindNarration:
		return narrationSystemPrompt
	default:
		return imageSystemPrompt
	}
}
