package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FallbackSummary is returned whenever the advisory summariser fails.
const FallbackSummary = "Unable to connect to AI Cloud Services at this moment."

// DefaultInsightsTimeout bounds a single summariser call.
const DefaultInsightsTimeout = 20 * time.Second

// Summarizer produces advisory text from a read-only copy of the records. It
// must not mutate anything.
type Summarizer interface {
	Summarize(ctx context.Context, students []Student, totalRevenue float64) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, students []Student, totalRevenue float64) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, students []Student, totalRevenue float64) (string, error) {
	return f(ctx, students, totalRevenue)
}

// StaticSummarizer always returns the same text.
type StaticSummarizer string

// Summarize returns the fixed text.
func (s StaticSummarizer) Summarize(context.Context, []Student, float64) (string, error) {
	return string(s), nil
}

type promptStatus struct {
	Cheat      Status `json:"cheat"`
	Form       Status `json:"form"`
	Payment    Status `json:"payment"`
	Bio        Status `json:"bio"`
	Transcript Status `json:"transcript"`
	Rector     Status `json:"rector"`
}

type promptStudent struct {
	Name   string       `json:"name"`
	Class  string       `json:"class"`
	Status promptStatus `json:"status"`
}

// BuildPrompt renders the advisory request for a language model.
func BuildPrompt(students []Student, totalRevenue float64) string {
	summary := make([]promptStudent, 0, len(students))
	for _, st := range students {
		summary = append(summary, promptStudent{
			Name:  st.Name,
			Class: st.Class,
			Status: promptStatus{
				Cheat:      st.Cheat,
				Form:       st.Form,
				Payment:    st.Payment,
				Bio:        st.BioData,
				Transcript: st.Transcript,
				Rector:     st.RectorReview,
			},
		})
	}
	data, _ := json.Marshal(summary)

	var b strings.Builder
	b.WriteString("As an AI Admissions Consultant for a Senior High School, analyze the following real-time admission data:\n\n")
	fmt.Fprintf(&b, "Total Students Registered: %d\n", len(students))
	fmt.Fprintf(&b, "Total Revenue Collected: GH₵ %.2f\n\n", totalRevenue)
	b.WriteString("Student Data Summary:\n")
	b.Write(data)
	b.WriteString("\n\nPlease provide:\n")
	b.WriteString("1. A brief executive summary of the current admission status.\n")
	b.WriteString("2. Identification of bottlenecks (e.g., students stuck at payment or biodata stages).\n")
	b.WriteString("3. Enrollment trends based on classes.\n")
	b.WriteString("4. A recommendation for the Rector.\n\n")
	b.WriteString("Keep the tone professional, concise, and use Markdown formatting.")
	return b.String()
}

// Insights asks summarizer for advisory text over the current records. It
// never fails: a missing summariser, an error or an empty answer yields
// FallbackSummary. timeout <= 0 uses DefaultInsightsTimeout.
func (s *Service) Insights(ctx context.Context, summarizer Summarizer, timeout time.Duration) string {
	start := s.clock.Now()
	text, err := s.summarize(ctx, summarizer, timeout)
	s.metrics.Observe(ctx, "insights", err == nil, s.clock.Now().Sub(start))
	if err != nil {
		s.logger.Warn().Err(err).Msg("advisory summary unavailable")
		return FallbackSummary
	}
	return text
}

func (s *Service) summarize(ctx context.Context, summarizer Summarizer, timeout time.Duration) (string, error) {
	if summarizer == nil {
		return "", fmt.Errorf("no summarizer configured")
	}
	if timeout <= 0 {
		timeout = DefaultInsightsTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	state := s.store.State()
	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		text, err := summarizer.Summarize(ctx, state.Students, state.TotalRevenue)
		done <- answer{text, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-done:
		if a.err != nil {
			return "", a.err
		}
		if strings.TrimSpace(a.text) == "" {
			return "", fmt.Errorf("empty summary")
		}
		return a.text, nil
	}
}
