package service

import (
	"errors"
	"net/http"

	"aispam/internal/classifier"
	"aispam/internal/domain"
)

// Report converts outcomes to their wire view, in the same order.
func Report(outcomes []Outcome) []domain.StrategyReport {
	reports := make([]domain.StrategyReport, 0, len(outcomes))
	for _, o := range outcomes {
		r := domain.StrategyReport{Strategy: o.Strategy}
		if o.Err != nil {
			r.Error = o.Err.Error()
			r.Status = http.StatusBadGateway
			var te *classifier.Error
			if errors.As(o.Err, &te) {
				r.ErrorKind = te.Kind.String()
				if te.Kind == classifier.KindTimeout {
					r.Status = http.StatusGatewayTimeout
				}
			}
			reports = append(reports, r)
			continue
		}

		score := o.Verdict.Score()
		r.Label = string(o.Verdict.Label)
		r.Score = &score
		r.Log = o.Verdict.Log()
		if o.Verdict.Degraded != nil {
			r.Degraded = o.Verdict.Degraded.Error()
		}
		reports = append(reports, r)
	}
	return reports
}

// Interrupted reports whether any strategy could not reach its provider.
func Interrupted(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if errors.Is(o.Err, classifier.ErrTransport) {
			return true
		}
	}
	return false
}
