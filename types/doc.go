/*
Package types defines the small information model procdns shares between its
pool, its workers, and its callers.

A [Query] identifies what to resolve: a name, a record type, and a class, plus
the point in time the query was issued. Queries are plain values and are never
mutated after creation, so they can be freely passed around between the
caller's goroutine and the pool's reactor goroutine.

Messages and records are not defined here; procdns uses the [github.com/miekg/dns]
types [dns.Msg] and [dns.RR] for these, so that process-based resolution is a
drop-in replacement for any executor talking DNS directly to name servers.

Worker handles go through the states described by [State]:

	Spawning → Authenticating → Available ⇄ Busy → Dead

where Authenticating only applies to workers connecting back over sockets.
*/
package types
