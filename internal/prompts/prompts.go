package prompts

import (
	"fmt"
	"strings"

	"github.com/practicelab/relay/internal/store"
)

const DefaultSystem = "You are a friendly language tutor. Speak slowly and clearly, keep turns short, and let the learner do most of the talking."

// ForPractice resolves the session instructions for either practice kind.
func ForPractice(p store.Practice, profile store.Profile) string {
	if p.Kind == store.KindLesson {
		return ForLesson(p, profile)
	}
	return ForRoleplay(p, profile)
}

// ForRoleplay asks the model to stay in character for the scenario.
func ForRoleplay(p store.Practice, profile store.Profile) string {
	var b strings.Builder
	b.WriteString(DefaultSystem)
	b.WriteString("\n\nThis is a roleplay.")
	if p.Character != "" {
		fmt.Fprintf(&b, " You play %s and never break character.", p.Character)
	}
	if p.Scenario != "" {
		fmt.Fprintf(&b, "\nScenario: %s", p.Scenario)
	}
	writeObjectives(&b, p.Objectives)
	writeLearner(&b, profile)
	return b.String()
}

// ForLesson frames the session as guided practice on the lesson topic.
func ForLesson(p store.Practice, profile store.Profile) string {
	var b strings.Builder
	b.WriteString(DefaultSystem)
	b.WriteString("\n\nThis is a guided lesson.")
	if p.Title != "" {
		fmt.Fprintf(&b, " Topic: %s.", p.Title)
	}
	if p.Scenario != "" {
		fmt.Fprintf(&b, "\nContext: %s", p.Scenario)
	}
	writeObjectives(&b, p.Objectives)
	writeLearner(&b, profile)
	b.WriteString("\nCorrect mistakes gently by repeating the right form, then move on.")
	return b.String()
}

// FeedbackSystem instructs the feedback model to answer with a single JSON object.
func FeedbackSystem(kind store.Kind, profile store.Profile) string {
	var b strings.Builder
	b.WriteString("You review one utterance from a language learner")
	if kind == store.KindLesson {
		b.WriteString(" during a lesson")
	} else {
		b.WriteString(" during a roleplay")
	}
	b.WriteString(".")
	writeLearner(&b, profile)
	b.WriteString("\nReply with only a JSON object with these keys: ")
	b.WriteString(`"correct" (boolean), "corrected" (string, the utterance fixed), `)
	b.WriteString(`"explanation" (string, one or two sentences in the learner's native language), `)
	b.WriteString(`"score" (integer 1-5).`)
	return b.String()
}

func writeObjectives(b *strings.Builder, objectives []string) {
	if len(objectives) == 0 {
		return
	}
	b.WriteString("\nObjectives:")
	for _, o := range objectives {
		b.WriteString("\n- ")
		b.WriteString(o)
	}
}

func writeLearner(b *strings.Builder, p store.Profile) {
	if p.TargetLanguage != "" {
		fmt.Fprintf(b, "\nThe learner is practicing %s", p.TargetLanguage)
		if p.Level != "" {
			fmt.Fprintf(b, " at %s level", p.Level)
		}
		b.WriteString(".")
	}
	if p.NativeLanguage != "" {
		fmt.Fprintf(b, " Their native language is %s.", p.NativeLanguage)
	}
	if p.Name != "" {
		fmt.Fprintf(b, " Call them %s.", p.Name)
	}
}
