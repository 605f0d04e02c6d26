/*
Package dig implements bulk name lookups through an [executor.Executor], such
as a pool of worker processes. The lookups run concurrently, but under the
constraint of a limited number of goroutines.

A [Digger] streams the outcome of each lookup over its “news” channel as soon
as it is known; a [Tally] consumes such a news stream, keeping track of the
latest outcome per name.

Usage

	digger, news := dig.New(8, executor)
	tally := dig.NewTally()
	go func() {
	    digger.Dig(ctx, []string{"example.org", "example.com"}, dns.TypeA)
	    digger.StopWait()
	}()
	_ = tally.Track(ctx, news)

# Acknowledgements

Under its hood, [Digger] leverages [gammazero/workerpool] as the limiting
goroutine pool.

[gammazero/workerpool]: https://github.com/gammazero/workerpool
*/
package dig
