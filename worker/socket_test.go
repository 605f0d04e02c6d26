// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/siemens/procdns/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

var _ = Describe("socket workers", func() {

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	It("authenticates before serving", NodeTimeout(10*time.Second), func(ctx context.Context) {
		l := Successful(net.Listen("tcp", "127.0.0.1:0"))
		defer l.Close()

		w := New(WithResolver(&stubResolver{
			addresses: map[string]string{"localhost": "127.0.0.1"},
		}))
		done := make(chan error, 1)
		go func() {
			done <- w.Run(ctx, Endpoint{Addr: l.Addr().String(), Cookie: "c00kie"}, nil, nil)
		}()

		conn := Successful(l.Accept())
		decoder := wire.NewDecoder()
		read := func() wire.Frame {
			GinkgoHelper()
			buf := make([]byte, 1024)
			for {
				Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
				n := Successful(conn.Read(buf))
				frames := Successful(decoder.Feed(buf[:n]))
				if len(frames) > 0 {
					Expect(frames).To(HaveLen(1))
					return Successful(wire.Unmarshal(frames[0]))
				}
			}
		}

		Expect(read()).To(Equal(wire.Auth{Cookie: "c00kie"}))

		Expect(wire.Write(conn, wire.Request{Name: "localhost", Type: 1})).To(Succeed())
		Expect(read()).To(Equal(wire.ResponseOk{Answers: []wire.Answer{
			{Host: "localhost", Class: "IN", TTL: 1, Type: "A", IP: "127.0.0.1"},
		}}))

		Expect(conn.Close()).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})

	It("reports unreachable pools", NodeTimeout(10*time.Second), func(ctx context.Context) {
		l := Successful(net.Listen("tcp", "127.0.0.1:0"))
		addr := l.Addr().String()
		l.Close()
		err := New().Run(ctx, Endpoint{Addr: addr}, strings.NewReader(""), nil)
		Expect(err).To(MatchError(ContainSubstring("unable to connect")))
	})

})
