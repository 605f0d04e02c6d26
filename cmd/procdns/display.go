// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/siemens/procdns/dig"
)

// progress describes where a bulk run currently is.
type progress struct {
	Round, Rounds int
	Done          bool
}

// renderer renders the terminal display of a bulk run, based on the tallied
// outcomes passed to its Render method.
type renderer struct {
	Indentation int
	w           io.Writer
	spinner     spinner
}

// newRenderer returns a renderer rendering to the specified io.Writer.
func newRenderer(w io.Writer, spinnerInterval time.Duration) *renderer {
	return &renderer{
		w:       w,
		spinner: newSpinner(spinnerInterval),
	}
}

// Render the progress and the latest outcome per name.
func (r *renderer) Render(p progress, ok, failed int, outcomes []dig.Outcome) {
	status := "  "
	if !p.Done {
		status = r.spinner.Spinner()
	}
	fmt.Fprintf(r.w, "%s%s %s, %s\n",
		status,
		headerStyle.Styled(fmt.Sprintf("round %d/%d:", p.Round, p.Rounds)),
		addressStyle.Styled(fmt.Sprintf("%d ok", ok)),
		failureStyle.Styled(fmt.Sprintf("%d failed", failed)))
	if len(outcomes) == 0 {
		fmt.Fprintf(r.w, "%-*swaiting for lookups...\n", r.Indentation, "")
		return
	}
	// Keep the address column from zig-zagging around.
	maxlen := 0
	for _, outcome := range outcomes {
		if l := len(outcome.Name); l > maxlen {
			maxlen = l
		}
	}
	for _, outcome := range outcomes {
		r.renderOutcome(maxlen, outcome)
	}
}

// renderOutcome renders a single name's latest outcome.
func (r *renderer) renderOutcome(namewidth int, outcome dig.Outcome) {
	fmt.Fprintf(r.w, "%-*s%-*s", r.Indentation, "", namewidth, outcome.Name)
	switch {
	case outcome.Err != nil:
		fmt.Fprint(r.w, failureStyle.Styled(" × "+outcome.Err.Error()))
	case len(outcome.Addresses) == 0 && len(outcome.Aliases) == 0:
		fmt.Fprint(r.w, failureStyle.Styled(" × not found"))
	default:
		for _, alias := range outcome.Aliases {
			fmt.Fprint(r.w, aliasStyle.Styled(" → "+strings.TrimSuffix(alias, ".")))
		}
		for _, addr := range outcome.Addresses {
			fmt.Fprint(r.w, addressStyle.Styled(" ✔ "+addr))
		}
	}
	fmt.Fprintf(r.w, " (%d lookups, %s)\n", outcome.Lookups, outcome.Took.Round(time.Microsecond))
}
