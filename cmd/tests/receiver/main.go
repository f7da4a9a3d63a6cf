package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/AuthPort/server/internal/webhooks"
)

// A local webhook receiver that verifies signatures the way an integrating
// application would. Point an endpoint at it with allow_private_targets
// enabled and watch deliveries arrive.
func main() {
	addr := flag.String("addr", ":9090", "listen address")
	secret := flag.String("secret", "", "endpoint signing secret (whsec_...)")
	tolerance := flag.Duration("tolerance", 5*time.Minute, "max accepted signature age")
	fail := flag.Int("fail", 0, "respond with this status instead of 200 (0 disables)")
	flag.Parse()

	if *secret == "" {
		log.Fatal("a -secret is required to verify deliveries")
	}

	signer := webhooks.NewSigner([]byte(*secret))

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		header := r.Header.Get(webhooks.HeaderSignature)
		if err := signer.Verify(header, body, *tolerance); err != nil {
			log.Printf("REJECTED %s %s: %v", r.Header.Get(webhooks.HeaderEvent), r.Header.Get(webhooks.HeaderID), err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		log.Printf("verified event=%s delivery=%s bytes=%d",
			r.Header.Get(webhooks.HeaderEvent),
			r.Header.Get(webhooks.HeaderID),
			len(body))

		if *fail != 0 {
			http.Error(w, "simulated failure", *fail)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	log.Printf("webhook receiver listening on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal(err)
	}
}
