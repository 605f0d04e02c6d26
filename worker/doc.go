/*
Package worker implements the worker side of procdns: the code running inside
each child process spawned by a [github.com/siemens/procdns/pool.Pool].

A [Worker] runs a plain blocking loop: wait for input, split it into frames,
resolve each request using the operating system's resolver, and write back the
answers. Blocking is fine here, as each worker lives in its own process and
thus cannot stall the pool's reactor. A frame that isn't a well-formed request
ends the loop, and thus the process; the pool notices the exit and spawns a
replacement.

Workers either talk to their pool via their standard input and output, or they
connect back to the pool via loopback TCP, presenting a single-use cookie
first. [FromEnvironment] tells which mode the pool asked for.

# Canonical answer order

The operating system resolver API doesn't return alias chains in canonical DNS
response order; typically, the final address records show up owned by the
final canonical name, with the CNAME records missing or out of place.
[Canonicalize] reconstructs the canonical order

	name → CNAME → CNAME → … → final answer

by looking up the missing CNAME records and splicing them into the answer
list.
*/
package worker
