// Package advisor provides the advisory summarisers behind core.Summarizer:
// an offline heuristic report and a Gemini-backed model client.
package advisor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"admissions/internal/core"
)

// Local builds a Markdown report from the records without any network call.
type Local struct{}

// NewLocal returns the offline summariser.
func NewLocal() Local { return Local{} }

type bottleneck struct {
	label string
	count int
}

type classCount struct {
	class string
	total int
	done  int
}

// Summarize reports totals, the stage where records are waiting, class
// enrolment and a recommendation for the rector.
func (Local) Summarize(ctx context.Context, students []core.Student, totalRevenue float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	overview := core.Overview(core.AppState{Students: students, TotalRevenue: totalRevenue})

	var b strings.Builder
	b.WriteString("## Executive summary\n\n")
	fmt.Fprintf(&b, "%d students registered; GH₵ %.2f collected. ", len(students), totalRevenue)
	fmt.Fprintf(&b, "%d approved, %d declined, %d still in process.\n\n",
		overview.Reviews.Approved, overview.Reviews.Failed, overview.Reviews.Processing)

	b.WriteString("## Bottlenecks\n\n")
	waiting := bottlenecks(students)
	if len(waiting) == 0 {
		b.WriteString("- No records are waiting on any desk.\n")
	}
	for _, w := range waiting {
		fmt.Fprintf(&b, "- %d waiting on %s\n", w.count, w.label)
	}

	b.WriteString("\n## Enrollment by class\n\n")
	classes := byClass(students)
	if len(classes) == 0 {
		b.WriteString("- No enrollments yet.\n")
	}
	for _, c := range classes {
		fmt.Fprintf(&b, "- %s: %d registered, %d fully processed\n", c.class, c.total, c.done)
	}

	b.WriteString("\n## Recommendation for the Rector\n\n")
	b.WriteString(recommend(waiting, overview.Reviews))
	b.WriteString("\n")
	return b.String(), nil
}

// bottlenecks counts records eligible for each action, largest first.
func bottlenecks(students []core.Student) []bottleneck {
	labels := map[core.GateAction]string{
		core.ActionSellForm:      "form sale",
		core.ActionRecordPayment: "payment",
		core.ActionLogBioData:    "biodata capture",
		core.ActionLogTranscript: "transcript capture",
		core.ActionRectorReview:  "rector review",
	}
	var out []bottleneck
	for _, action := range core.GateActions() {
		label, ok := labels[action]
		if !ok {
			continue
		}
		if n := len(core.EligibleFor(action, students)); n > 0 {
			out = append(out, bottleneck{label: label, count: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	return out
}

func byClass(students []core.Student) []classCount {
	index := map[string]int{}
	var out []classCount
	for _, st := range students {
		i, ok := index[st.Class]
		if !ok {
			i = len(out)
			index[st.Class] = i
			out = append(out, classCount{class: st.Class})
		}
		out[i].total++
		if st.RectorReview != core.StatusPending {
			out[i].done++
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].total > out[j].total })
	return out
}

func recommend(waiting []bottleneck, reviews core.ReviewBreakdown) string {
	if len(waiting) == 0 {
		return "Pipeline is clear; keep issuing slips and monitor form stock."
	}
	top := waiting[0]
	if top.label == "rector review" {
		return fmt.Sprintf("Schedule a review session: %d files are complete and awaiting a decision.", top.count)
	}
	return fmt.Sprintf("Add capacity at %s, where %d students are queued. %d decisions have been made so far.",
		top.label, top.count, reviews.Approved+reviews.Failed)
}
