// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wire

// Answer is a single resource record in the raw form handed out by the
// operating system resolver facility of a worker. Which of the data fields is
// set depends on Type.
type Answer struct {
	Host   string `json:"host"`
	Class  string `json:"class"`
	TTL    uint32 `json:"ttl"`
	Type   string `json:"type"`
	IP     string `json:"ip,omitempty"`     // A
	Target string `json:"target,omitempty"` // CNAME, MX, NS, PTR
	Pri    uint16 `json:"pri,omitempty"`    // MX
	Txt    string `json:"txt,omitempty"`    // TXT
}
