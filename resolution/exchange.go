// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolution

import (
	"context"

	"github.com/miekg/dns"
	"github.com/siemens/procdns/types"
)

// Sender accepts requests for resolution, settling each request later.
type Sender interface {
	Send(req *Request)
}

// Exchange sends a request for the specified query to a Sender and waits for
// the outcome, returning a DNS message with the query as its only question.
func Exchange(ctx context.Context, s Sender, q types.Query) (*dns.Msg, error) {
	req := NewRequest(ctx, q)
	s.Send(req)
	resp, err := req.Future().Wait(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Message(q)
}
