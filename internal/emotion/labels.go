package emotion

import "fmt"

// Label is one of the seven emotions the classifier distinguishes.
type Label string

// Emotion labels in classifier output order.
const (
	Angry       Label = "angry"
	Anxious     Label = "anxious"
	Embarrassed Label = "embarrassed"
	Happy       Label = "happy"
	Hurt        Label = "hurt"
	Neutrality  Label = "neutrality"
	Sad         Label = "sad"
)

// Labels lists every label by raw class index.
var Labels = [...]Label{Angry, Anxious, Embarrassed, Happy, Hurt, Neutrality, Sad}

// remap folds classes the model confuses into their neighbours:
// embarrassed reports as anxious and hurt reports as sad.
var remap = map[int]int{2: 1, 4: 6}

// LabelFromIndex maps a raw arg-max class index to its reported label.
func LabelFromIndex(raw int) (Label, error) {
	if raw < 0 || raw >= len(Labels) {
		return "", fmt.Errorf("emotion: class index %d out of range", raw)
	}
	if to, ok := remap[raw]; ok {
		raw = to
	}
	return Labels[raw], nil
}

// ArgMax returns the index of the largest score, or -1 for an empty slice.
// Ties resolve to the lowest index.
func ArgMax(scores []float64) int {
	best := -1
	for i, s := range scores {
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	return best
}
