/*
Package executor adapts worker pools to the generic DNS query executor
contract, so that offloaded resolution can be used wherever a direct network
query executor would be used otherwise.

Use a [Factory] to create a started pool with the transport suitable for the
platform:

	p, err := executor.NewFactory(executor.WithSize(4)).CreateExecutor()
	if err != nil {
	    // ...
	}
	defer p.Stop()
	msg, err := p.Query(ctx, "", types.NewQuery("example.org", dns.TypeA))
*/
package executor
