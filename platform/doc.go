/*
Package platform answers the few questions about the host operating system
that procdns needs to answer in order to pick how it talks to its worker
processes.

On Windows, asynchronous I/O on anonymous pipes connected to child processes
isn't usable, so the worker pool needs to fall back to workers connecting back
to the pool over loopback TCP instead.
*/
package platform
