// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// Query identifies a DNS name together with the record type and class to look
// up for it.
type Query struct {
	Name     string    `json:"name"`
	Type     uint16    `json:"type"`  // dns.TypeA, dns.TypeCNAME, ...
	Class    uint16    `json:"class"` // dns.ClassINET
	IssuedAt time.Time `json:"issued"`
}

// NewQuery returns a new Query for the specified name and record type in the
// Internet class, issued now.
func NewQuery(name string, qtype uint16) Query {
	return Query{
		Name:     name,
		Type:     qtype,
		Class:    dns.ClassINET,
		IssuedAt: time.Now(),
	}
}

// Question returns the query in form of a DNS question. The name is taken
// verbatim and not turned into an FQDN.
func (q Query) Question() dns.Question {
	return dns.Question{
		Name:   q.Name,
		Qtype:  q.Type,
		Qclass: q.Class,
	}
}

// String returns the query in the usual "name class type" notation.
func (q Query) String() string {
	return fmt.Sprintf("%s %s %s", q.Name, dns.ClassToString[q.Class], dns.TypeToString[q.Type])
}
