// Command netconf is a thin wrapper around the client package, enough to
// exercise the library end to end against a real device. Argument parsing
// depth, output formatting and colour are deliberately minimal: this is a
// debug entrypoint, not a full NETCONF CLI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/xlnconf/netconf/netconf/async"
	"github.com/xlnconf/netconf/netconf/client"
	"github.com/xlnconf/netconf/netconf/session"
	"github.com/xlnconf/netconf/tree"
)

func main() {
	host := flag.String("host", "", "NETCONF device address")
	port := flag.Int("port", 830, "NETCONF device port")
	user := flag.String("user", "", "SSH user")
	password := flag.String("password", "", "SSH password")
	xpath := flag.String("xpath", "/", "XPath to operate on")
	op := flag.String("op", "hello", "one of: hello, get-data, lock, unlock, discard")
	readOnly := flag.Bool("read-only", false, "refuse edit-config/rpc calls")
	flag.Parse()

	if *host == "" {
		fmt.Fprintln(os.Stderr, "-host is required")
		os.Exit(2)
	}

	cfg := &session.Config{
		Host:     *host,
		Port:     *port,
		User:     *user,
		Password: *password,
		ReadOnly: *readOnly,
	}

	c := client.New(cfg, client.DefaultSSHConfig(*user, *password))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		seq *async.Sequence[*tree.Node]
		err error
	)

	switch *op {
	case "hello":
		seq, err = c.Hello(ctx)
	case "get-data":
		seq, err = c.GetData(ctx, *xpath, client.ResultUndefined)
	case "lock":
		seq, err = c.Lock(ctx, "running")
	case "unlock":
		seq, err = c.Unlock(ctx, "running")
	case "discard":
		seq, err = c.Discard(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown -op %q\n", *op)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", *op, err)
	}

	results, err := seq.Collect(ctx)
	if err != nil {
		log.Fatalf("%s: %v", *op, err)
	}
	for _, r := range results {
		b, merr := json.MarshalIndent(r.AsGo(), "", "  ")
		if merr != nil {
			log.Fatal(merr)
		}
		fmt.Println(string(b))
	}

	if cerr := c.Close(ctx); cerr != nil {
		log.Printf("close: %v", cerr)
	}
}
