/*
Package mobynet maps Docker containers to their network namespaces and to the
DNS names reachable on the networks attached to them, so that names can be
resolved from the perspective of a particular container.
*/
package mobynet
