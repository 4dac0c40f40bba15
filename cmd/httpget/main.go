// Command httpget exercises a Client end to end: it resolves a URL,
// fires it at a destination several times concurrently through the
// Dispatcher, and prints each Response's status and body size.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/domsolutions/httpclient"
)

func main() {
	url := flag.String("url", "https://api.binance.com/api/v3/exchangeInfo", "URL to GET")
	concurrency := flag.Int("n", 5, "number of concurrent requests")
	flag.Parse()

	client := httpclient.NewClient(httpclient.ClientOpts{
		MaxRequestsPerHost: *concurrency,
		UserAgent:          "httpget/1.0",
	})
	defer func() {
		if err := client.Shutdown(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fetch(client, *url, n)
		}(i)
	}
	wg.Wait()
}

func fetch(client *httpclient.Client, rawURL string, n int) {
	req, err := httpclient.NewRequest("GET", rawURL, nil)
	if err != nil {
		color.Red("[%d] build request: %v", n, err)
		return
	}

	start := time.Now()
	res, err := client.NewCall(req).Execute()
	elapsed := time.Since(start)
	if err != nil {
		color.Red("[%d] %s: %v", n, rawURL, err)
		return
	}
	defer res.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		color.Red("[%d] read body: %v", n, err)
		return
	}

	statusColor := color.New(color.FgGreen)
	switch {
	case res.StatusCode >= 500:
		statusColor = color.New(color.FgRed)
	case res.StatusCode >= 400:
		statusColor = color.New(color.FgYellow)
	case res.StatusCode >= 300:
		statusColor = color.New(color.FgCyan)
	}

	statusColor.Fprintf(os.Stdout, "[%d] %d", n, res.StatusCode)
	fmt.Printf(" %s %d bytes in %s\n", res.Proto, len(body), elapsed.Round(time.Millisecond))
}
