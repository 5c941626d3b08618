package bottleneck

import (
	"fmt"
	"strings"
)

var signalPhrases = map[Type]string{
	WorkspaceOverload:  "my attention is spread across too many things at once",
	ResourceExhaustion: "I am holding more goals than I can pursue together",
	MemoryLag:          "I am struggling to consolidate what just happened",
	CycleOverrun:       "each thought is taking longer than it should",
	SubsystemSlowdown:  "part of my processing is running slowly",
}

// IntrospectionText describes the current overload in the first person.
// It returns "" when not bottlenecked. The text is descriptive only;
// nothing downstream parses it.
func (d *Detector) IntrospectionText() string {
	st := d.State()
	if !st.IsBottlenecked || len(st.Active) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("I notice my processing is constrained:\n")
	seen := make(map[Type]bool)
	for _, sig := range st.Active {
		if seen[sig.Type] {
			continue
		}
		seen[sig.Type] = true
		fmt.Fprintf(&b, "- %s\n", signalPhrases[sig.Type])
	}
	fmt.Fprintf(&b, "Overall load: %.0f%%", st.OverallLoad*100)
	if st.Recommendation != RecommendNormal {
		fmt.Fprintf(&b, "\nAdapting by: %s", strings.ReplaceAll(st.Recommendation, "_", " "))
	}
	return b.String()
}
