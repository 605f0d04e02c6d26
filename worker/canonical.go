// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package worker

import (
	"context"

	"github.com/siemens/procdns/wire"
)

// Canonicalize walks the answers to an address query for name and splices in
// missing CNAME records, so that the answers end up in canonical alias chain
// order:
//
//   - an A record owned by some name other than the queried name gets the
//     CNAME chain of the queried name inserted in front of it.
//   - a CNAME record gets the CNAME chain of its target inserted right after
//     it.
//
// Each owner and target is looked up only once, which bounds the number of
// additional lookups by the number of distinct aliases and guarantees
// termination. Spliced records are walked like any other record, and records
// already present in the answers are never spliced in a second time. Lookup
// failures simply don't splice anything.
func Canonicalize(ctx context.Context, r CNAMEResolver, name string, answers []wire.Answer) []wire.Answer {
	resolved := map[string]struct{}{}
	for idx := 0; idx < len(answers); idx++ {
		answer := answers[idx]
		switch answer.Type {
		case "A":
			if sameName(answer.Host, name) {
				continue
			}
			key := nameKey(answer.Host)
			if _, ok := resolved[key]; ok {
				continue
			}
			resolved[key] = struct{}{}
			var n int
			answers, n = spliceCNAMEs(ctx, r, name, answers, idx)
			if n > 0 {
				idx-- // ...revisit from the first spliced record on.
			}
		case "CNAME":
			key := nameKey(answer.Target)
			if _, ok := resolved[key]; ok {
				continue
			}
			resolved[key] = struct{}{}
			answers, _ = spliceCNAMEs(ctx, r, answer.Target, answers, idx+1)
		}
	}
	return answers
}

// spliceCNAMEs looks up the CNAME chain of name and inserts its records not
// yet present in answers at position idx. It returns the updated answers and
// the number of records inserted.
func spliceCNAMEs(ctx context.Context, r CNAMEResolver, name string, answers []wire.Answer, idx int) ([]wire.Answer, int) {
	cnames, err := r.LookupCNAME(ctx, name)
	if err != nil || len(cnames) == 0 {
		return answers, 0
	}
	fresh := make([]wire.Answer, 0, len(cnames))
	for _, cname := range cnames {
		if !containsAnswer(answers, cname) && !containsAnswer(fresh, cname) {
			fresh = append(fresh, cname)
		}
	}
	if len(fresh) == 0 {
		return answers, 0
	}
	spliced := make([]wire.Answer, 0, len(answers)+len(fresh))
	spliced = append(spliced, answers[:idx]...)
	spliced = append(spliced, fresh...)
	spliced = append(spliced, answers[idx:]...)
	return spliced, len(fresh)
}

// containsAnswer returns true if answers already contain an answer with the
// same owner, type, and data as the specified answer; TTLs don't matter.
func containsAnswer(answers []wire.Answer, a wire.Answer) bool {
	for _, answer := range answers {
		if answer.Type == a.Type &&
			sameName(answer.Host, a.Host) &&
			answer.IP == a.IP &&
			sameName(answer.Target, a.Target) &&
			answer.Pri == a.Pri &&
			answer.Txt == a.Txt {
			return true
		}
	}
	return false
}
