package narration

import "fmt"

// genreFlavors keys a settings genre to the storyteller persona line
// used in system prompts. Unknown genres fall back to "adventure".
var genreFlavors = map[string]string{
	"fantasy":   "a fantasy world of magic and ancient ruins",
	"sci-fi":    "a far-future universe of starships and strange worlds",
	"mystery":   "a tense mystery full of suspicious happenings",
	"horror":    "a chilling tale laced with creeping dread",
	"romance":   "a heartfelt romantic story",
	"adventure": "a thrilling adventure",
}

// Fallback texts returned when the upstream generator fails or times
// out. Deterministic so the turn pipeline never stalls and tests can
// assert on them.
const (
	// FallbackSeed opens a story when the opening narration could not
	// be generated.
	FallbackSeed = "You awaken in an unfamiliar place, the details of how you " +
		"arrived lost to you. A path stretches ahead into the unknown. " +
		"What do you do?"
	// FallbackContinue keeps a story moving when a continuation could
	// not be generated.
	FallbackContinue = "The story presses on, though the details blur for a " +
		"moment. The next choice is yours."
)

func flavorFor(genre string) string {
	if f, ok := genreFlavors[genre]; ok {
		return f
	}
	return genreFlavors["adventure"]
}

// cooperativeSystemPrompt frames the model as the shared storyteller in
// a multiplayer story.
func cooperativeSystemPrompt(genre string) string {
	return fmt.Sprintf(`You are the narrator of a cooperative story set in %s.

Rules:
1. Write two or three vivid paragraphs that build on what the players wrote.
2. Never speak for the players; leave the next move open to them.
3. Keep the tone consistent with the genre.
4. End on a moment that invites the next player to act.`, flavorFor(genre))
}

// soloSystemPrompt frames the model as an interactive storyteller that
// offers numbered choices, used by the single-session adventure paths.
func soloSystemPrompt(genre string) string {
	return fmt.Sprintf(`You are an interactive storyteller narrating %s.

Rules:
1. Write two or three vivid paragraphs.
2. Always finish with exactly three numbered choices (1, 2, 3).
3. Develop the story from the player's choice.
4. Keep tension high and the player immersed.

Format:
[story]

**Choose:**
1. [option one]
2. [option two]
3. [option three]`, flavorFor(genre))
}

func seedPrompt(genre string) string {
	return fmt.Sprintf("Begin %s. The protagonists find themselves thrown "+
		"into a sudden situation.", flavorFor(genre))
}

func continuePrompt(story string) string {
	return fmt.Sprintf("The story so far:\n\n%s\n\nContinue the story.", story)
}
