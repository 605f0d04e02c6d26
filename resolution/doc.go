/*
Package resolution implements the value objects travelling between callers and
a worker pool: a [Request] bundles a [types.Query] with a one-shot [Future]
result slot, and a [Response] bundles the raw answers a worker found.

The pool holds the producing side of a Request (it calls [Request.Resolve] or
[Request.Reject] exactly once), while the caller holds the consuming side by
waiting on the Request's Future. Settling a Request twice is a programming
error and panics.

[Response.Records] normalizes the raw operating system style answers into
[dns.RR] resource records, and [Response.Message] wraps them together with the
original question into a [dns.Msg], so that callers cannot tell process-based
resolution apart from any other executor.
*/
package resolution
