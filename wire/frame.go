// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Delimiter terminates each frame.
const Delimiter = 0

// ErrMalformedFrame signals a frame that either isn't valid JSON or doesn't
// have any of the known frame shapes.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one of [Request], [ResponseOk], [ResponseErr], or [Auth].
type Frame interface {
	frame()
}

// Request asks a worker to resolve a name for a particular (numeric) record
// type.
type Request struct {
	Name string `json:"name"`
	Type int    `json:"type"`
}

// ResponseOk carries the answers found by a worker; the answer list might be
// empty.
type ResponseOk struct {
	Answers []Answer `json:"value"`
}

// ResponseErr carries the reason why a worker failed to resolve a request.
type ResponseErr struct {
	Reason string `json:"reason"`
}

// Auth is the first frame a socket-connected worker sends to prove its
// identity.
type Auth struct {
	Cookie string `json:"cookie"`
}

func (Request) frame()     {}
func (ResponseOk) frame()  {}
func (ResponseErr) frame() {}
func (Auth) frame()        {}

// envelope is the union of all frame shapes; we use raw messages so that we
// can tell absent fields from fields being present with a zero value.
type envelope struct {
	Name   json.RawMessage `json:"name"`
	Type   json.RawMessage `json:"type"`
	Value  json.RawMessage `json:"value"`
	Reason json.RawMessage `json:"reason"`
	Cookie json.RawMessage `json:"cookie"`
}

// present returns true if a field was present in the JSON object with a
// non-null value.
func present(raw json.RawMessage) bool {
	return len(raw) != 0 && !bytes.Equal(raw, []byte("null"))
}

// Marshal returns the wire representation of the specified frame, including
// the trailing delimiter.
func Marshal(f Frame) ([]byte, error) {
	if f == nil {
		return nil, ErrMalformedFrame
	}
	if ok, is := f.(ResponseOk); is && ok.Answers == nil {
		// never send "null", receivers wouldn't consider it to be a value.
		f = ResponseOk{Answers: []Answer{}}
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal frame: %w", err)
	}
	return append(b, Delimiter), nil
}

// Write marshals the specified frame and writes it to w in a single write.
func Write(w io.Writer, f Frame) error {
	b, err := Marshal(f)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Unmarshal decodes a single frame without its delimiter. Responses win over
// authentication, which wins over requests, in case a peer sends a frame
// mixing shapes.
func Unmarshal(b []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedFrame, err.Error())
	}
	switch {
	case present(env.Value):
		var answers []Answer
		if err := json.Unmarshal(env.Value, &answers); err != nil {
			return nil, fmt.Errorf("%w: invalid value: %s", ErrMalformedFrame, err.Error())
		}
		if answers == nil {
			answers = []Answer{}
		}
		return ResponseOk{Answers: answers}, nil
	case present(env.Reason):
		return ResponseErr{Reason: reason(env.Reason)}, nil
	case present(env.Cookie):
		var cookie string
		if err := json.Unmarshal(env.Cookie, &cookie); err != nil {
			return nil, fmt.Errorf("%w: invalid cookie: %s", ErrMalformedFrame, err.Error())
		}
		return Auth{Cookie: cookie}, nil
	case present(env.Name) && present(env.Type):
		var req Request
		if err := json.Unmarshal(env.Name, &req.Name); err != nil {
			return nil, fmt.Errorf("%w: invalid name: %s", ErrMalformedFrame, err.Error())
		}
		if err := json.Unmarshal(env.Type, &req.Type); err != nil {
			return nil, fmt.Errorf("%w: invalid type: %s", ErrMalformedFrame, err.Error())
		}
		return req, nil
	}
	return nil, ErrMalformedFrame
}

// reason turns a failure reason into text: strings are taken as-is, anything
// else (such as structured errors) is passed on in its JSON representation.
func reason(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
