/*
Package wire implements the framing and message shapes exchanged between a
procdns pool and its worker processes.

Each frame is a UTF-8 JSON object terminated by a single NUL byte; there is no
length prefix. As JSON encoding escapes control characters, a JSON object
never contains an embedded NUL, so NUL is a safe delimiter.

Frames come in a closed set of shapes:

	{"name": "example.org", "type": 1}     → [Request]
	{"value": [ ...answers... ]}           → [ResponseOk]
	{"reason": "..."}                      → [ResponseErr]
	{"cookie": "..."}                      → [Auth]

Receivers use a [Decoder] per connection or process, which buffers partial
data and yields complete frames. A Decoder refuses to buffer more than a
fixed ceiling of bytes without seeing a complete frame, so that a broken or
hostile peer cannot make its receiver grow its buffer without bounds.
*/
package wire
