package classifier

import (
	"context"
	"strings"
)

type Label string

const (
	LabelSpam    Label = "SPAM"
	LabelNotSpam Label = "NOT_SPAM"
)

// Labels is the set of values a provider may answer with.
var Labels = []Label{LabelSpam, LabelNotSpam}

// UserStrategyName selects the user score threshold instead of the resource one.
const UserStrategyName = "third_party_user"

const (
	logSpam    = "AI system marked this as spam"
	logNotSpam = "AI system didn't marked this content as spam"
)

// Request is the content handed to a strategy. OrganizationHost and
// ResourceClass are optional routing context.
type Request struct {
	Text             string
	OrganizationHost string
	ResourceClass    string
}

// Verdict is the outcome of a single classification call.
type Verdict struct {
	Label     Label
	score     int
	threshold float64

	// Degraded holds the protocol error that was swallowed under PolicyDegrade.
	Degraded error
}

func newVerdict(label Label, threshold float64) *Verdict {
	score := 0
	if strings.EqualFold(string(label), "spam") {
		score = 1
	}
	return &Verdict{Label: label, score: score, threshold: threshold}
}

// Score is 1 for spam and 0 otherwise.
func (v *Verdict) Score() int {
	return v.score
}

func (v *Verdict) Log() string {
	if float64(v.score) <= v.threshold {
		return logNotSpam
	}
	return logSpam
}

// Classifier is the contract every spam detection strategy satisfies.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, req Request) (*Verdict, error)
	Train(category, text string) error
	Untrain(category, text string) error
}

func validLabel(v any) (Label, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	for _, l := range Labels {
		if Label(s) == l {
			return l, true
		}
	}
	return "", false
}
