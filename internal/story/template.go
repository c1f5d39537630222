package story

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// lineBank holds whole narration lines per stage. {subject} is replaced by
// the prompt's subject phrase.
type lineBank map[Stage][]string

var horrorBank = lineBank{
	StageHook: {
		"Nobody goes near {subject} after dark anymore.",
		"I used to think {subject} was just an old local story.",
		"The first night I spent near {subject}, the radio turned itself on.",
		"Everyone in town has a rule about {subject}.",
		"There is a reason the maps stopped showing {subject}.",
		"My grandmother made me promise I would never visit {subject}.",
		"It started with a single knock.",
		"I found the key taped under the last stair.",
	},
	StageBuild: {
		"The air inside was colder than the night outside.",
		"Every door I opened was already open a moment before.",
		"Someone had written my name in the dust on the window.",
		"I heard footsteps above me, slow and patient, matching mine.",
		"The clocks had all stopped at exactly three seventeen.",
		"My phone showed full signal but every call went to static.",
		"A lamp flickered on at the far end of the hall.",
		"The walls smelled like wet stone and old matches.",
		"I told myself it was the wind, and I almost believed it.",
		"Each photograph on the wall had one face scratched away.",
		"When I looked back, the path behind me was gone.",
		"Something breathed in the dark, just out of reach.",
	},
	StageTwist: {
		"Then I realized the footsteps were coming from inside my own room.",
		"The last photograph was of me, taken from behind, tonight.",
		"The voice calling my name was my own, recorded years ago.",
		"I checked the date on the newspaper and it was tomorrow.",
		"The key fit every lock, because every lock was made for me.",
		"I counted the windows from outside, and there was one extra.",
		"The caretaker smiled and said he had been waiting a long time.",
		"My reflection did not turn when I turned away.",
		"The scratched faces all belonged to people who had come looking.",
		"It was never trying to keep me out.",
	},
	StageEnding: {
		"I still hear the knocking some nights, softer now, closer.",
		"If you ever visit {subject}, do not answer when it says your name.",
		"I left before sunrise, but part of me never did.",
		"The door is still open, and the light is still on.",
		"Sometimes I wonder who really walked out that night.",
		"Lock your door tonight, and then check it twice.",
		"Whatever lives there is patient, and it remembers faces.",
		"I never went back, but it keeps coming to me.",
	},
}

var confessionBank = lineBank{
	StageHook: {
		"So this happened last week and I still cannot process it.",
		"I need to tell someone about {subject} before I lose my mind.",
		"Throwaway account, because people I know read this sub.",
		"I never believed these stories until {subject} happened to me.",
		"Okay, buckle up, this one gets weird fast.",
		"My roommate says I should post this, so here goes.",
		"For context, I am the most skeptical person I know.",
	},
	StageBuild: {
		"It started small, like misplaced keys and doors left open.",
		"My neighbor kept asking if I had guests over at night.",
		"I set up a camera just to prove I was imagining things.",
		"The footage showed me sleeping, which should have been reassuring.",
		"Except the timestamp skipped forty minutes every single night.",
		"I asked my landlord, and he went very quiet on the phone.",
		"He told me the last tenant left without taking anything.",
		"Then the messages started showing up on my laptop.",
		"They were written in my style, with my usual typos.",
		"I changed every password and they kept coming anyway.",
		"Honestly, I figured it was a prank by someone I knew.",
	},
	StageTwist: {
		"Then I found the messages were sent while I was on camera asleep.",
		"The last tenant's name was mine, same spelling, same birthday.",
		"My roommate finally admitted she moved out months ago.",
		"The landlord sent a photo of the unit, and it was empty.",
		"Every message ended with the same date, which is next Friday.",
		"The forty missing minutes were always spent standing by my bed.",
		"The person on the camera was wearing my clothes, but not my face.",
		"My own handwriting was on a note I never wrote.",
	},
	StageEnding: {
		"I am writing this from a motel, and my phone just buzzed.",
		"If anyone has dealt with {subject} before, please tell me what to do.",
		"Update to follow, if I am still the one posting it.",
		"I will keep the camera running tonight, just in case.",
		"Friday is in three days, and I am not sleeping until then.",
		"Please, if you see a post from me after Friday, do not trust it.",
		"I will update when I can, assuming it lets me.",
	},
}

var stageBeats = map[Stage]string{
	StageHook:   "establishing shot, first glimpse",
	StageBuild:  "rising tension, close details",
	StageTwist:  "sudden reveal, dramatic angle",
	StageEnding: "lingering final frame, empty and quiet",
}

var leadingArticles = []string{"the ", "a ", "an ", "my ", "our ", "this ", "that "}

// TemplateGenerator assembles stories from fixed line banks. Output is
// deterministic for a given prompt.
type TemplateGenerator struct {
	MaxSeconds float64
}

func NewTemplateGenerator(maxSeconds float64) *TemplateGenerator {
	return &TemplateGenerator{MaxSeconds: maxSeconds}
}

func (g *TemplateGenerator) Generate(ctx context.Context, req Request) (*Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subject := subjectPhrase(req.Prompt)
	if subject == "" {
		return nil, fmt.Errorf("prompt yields no usable subject")
	}

	bank := horrorBank
	if req.Profile.ID == "reddit_stories" {
		bank = confessionBank
	}

	target := req.TargetWords
	if target <= 0 {
		target = WordBand{
			Min: req.Profile.StoryStyle.TargetWordCount.Min,
			Max: req.Profile.StoryStyle.TargetWordCount.Max,
		}.Midpoint()
	}
	perStage := StageWords(target)
	rng := rand.New(rand.NewPCG(seedFor(req.Prompt), 0x5eed))

	scenes := make([]Scene, 0, len(Stages))
	for _, stage := range Stages {
		narration := fillStage(rng, bank[stage], subject, perStage[stage])
		if narration == "" {
			return nil, fmt.Errorf("stage %s produced no narration", stage)
		}
		description := fmt.Sprintf("%s: %s", stage, subject)
		scenes = append(scenes, Scene{
			Description: description,
			Narration:   narration,
			ImagePrompt: imagePrompt(subject, stage, req.Profile.Visuals.BaseStylePrompt),
		})
	}

	title := cases.Title(language.English).String(subject)
	s := &Story{
		Title:       title,
		Description: fmt.Sprintf("A %s short about %s.", firstTone(req.Profile.StoryStyle.Tone), subject),
		Scenes:      scenes,
		Hashtags:    append([]string(nil), req.Profile.Hashtags.Default...),
	}
	Finalize(s, g.MaxSeconds)
	return s, nil
}

// fillStage appends whole lines until the stage target is met. Once the
// remaining budget is smaller than the next line, it closes with the
// shortest unused line that reaches the target, so overshoot stays small.
func fillStage(rng *rand.Rand, lines []string, subject string, target int) string {
	pool := make([]string, len(lines))
	for i, line := range lines {
		pool[i] = strings.ReplaceAll(line, "{subject}", subject)
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	var picked []string
	words := 0
	for len(pool) > 0 && words < target {
		remaining := target - words
		next := pool[0]
		if WordCount(next) < remaining {
			picked = append(picked, next)
			words += WordCount(next)
			pool = pool[1:]
			continue
		}
		idx := closingLine(pool, remaining)
		picked = append(picked, pool[idx])
		words += WordCount(pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return strings.Join(picked, " ")
}

func closingLine(pool []string, remaining int) int {
	idx := make([]int, len(pool))
	for i := range pool {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return WordCount(pool[idx[a]]) < WordCount(pool[idx[b]])
	})
	for _, i := range idx {
		if WordCount(pool[i]) >= remaining {
			return i
		}
	}
	return idx[len(idx)-1]
}

func subjectPhrase(prompt string) string {
	subject := strings.Join(strings.Fields(prompt), " ")
	subject = strings.TrimRight(subject, ".!?,;: ")
	if subject == "" {
		return ""
	}
	lower := strings.ToLower(subject)
	for _, article := range leadingArticles {
		if strings.HasPrefix(lower, article) {
			return lower
		}
	}
	return "the " + lower
}

func imagePrompt(subject string, stage Stage, style string) string {
	parts := []string{subject, stageBeats[stage]}
	if strings.TrimSpace(style) != "" {
		parts = append(parts, style)
	}
	parts = append(parts, "vertical 9:16 composition")
	return strings.Join(parts, ", ")
}

func firstTone(tone string) string {
	tone = strings.TrimSpace(strings.Split(tone, ",")[0])
	if tone == "" {
		return "dark"
	}
	return tone
}

func seedFor(prompt string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(prompt))))
	return h.Sum64()
}
