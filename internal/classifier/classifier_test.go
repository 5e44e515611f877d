package classifier

import "testing"

func TestVerdict_Score(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label Label
		want  int
	}{
		{LabelSpam, 1},
		{LabelNotSpam, 0},
		{Label("spam"), 1},
		{Label("Spam"), 1},
		{Label(""), 0},
	}
	for _, tt := range tests {
		v := newVerdict(tt.label, defaultThreshold)
		if got := v.Score(); got != tt.want {
			t.Errorf("label %q: expected score %d, got %d", tt.label, tt.want, got)
		}
	}
}

func TestVerdict_Log(t *testing.T) {
	t.Parallel()

	if got := newVerdict(LabelSpam, 0.5).Log(); got != "AI system marked this as spam" {
		t.Errorf("unexpected spam log line %q", got)
	}
	if got := newVerdict(LabelNotSpam, 0.5).Log(); got != "AI system didn't marked this content as spam" {
		t.Errorf("unexpected not-spam log line %q", got)
	}
	// A score equal to the threshold is not spam.
	if got := newVerdict(LabelSpam, 1).Log(); got != "AI system didn't marked this content as spam" {
		t.Errorf("expected not-spam log line at threshold, got %q", got)
	}
}

func TestValidLabel(t *testing.T) {
	t.Parallel()

	valid := []any{"SPAM", "NOT_SPAM"}
	for _, v := range valid {
		if _, ok := validLabel(v); !ok {
			t.Errorf("expected %v to be valid", v)
		}
	}

	invalid := []any{nil, "", "spam", "not_spam", "MAYBE", "INVALID RESPONSE", 1, true, []any{"SPAM"}}
	for _, v := range invalid {
		if _, ok := validLabel(v); ok {
			t.Errorf("expected %v to be invalid", v)
		}
	}
}
