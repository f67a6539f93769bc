package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	// --- Command-line flags ---
	var server string
	var duration int
	var concurrency int
	var follows int
	var writeRatio float64
	var csvFile string
	var trimPercent float64
	var insecure bool

	flag.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines / users")
	flag.IntVar(&follows, "follows", 10, "followees per user")
	flag.Float64Var(&writeRatio, "writes", 0.1, "fraction of requests that create a post instead of reading a feed")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save feed read latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	flag.Parse()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure},
		},
		Timeout: 10 * time.Second,
	}

	send := func(method, path string, body any) (*http.Response, error) {
		var b []byte
		if body != nil {
			b, _ = json.Marshal(body)
		}
		req, err := http.NewRequestWithContext(context.Background(), method, server+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return client.Do(req)
	}

	// --- Create one user per goroutine and wire a follow graph ---
	fmt.Printf("Creating %d users...\n", concurrency)
	run := time.Now().UnixNano()
	users := make([]string, concurrency)
	for i := range users {
		users[i] = fmt.Sprintf("load-user-%d-%d", run, i)
		resp, err := send(http.MethodPost, "/users/"+users[i], nil)
		if err != nil {
			panic(fmt.Sprintf("failed to create user: %v", err))
		}
		resp.Body.Close()
	}
	for _, u := range users {
		for j := 0; j < follows; j++ {
			followee := users[rand.Intn(len(users))]
			if followee == u {
				continue
			}
			resp, err := send(http.MethodPut, "/users/"+u+"/following/"+followee, nil)
			if err != nil {
				panic(fmt.Sprintf("failed to follow: %v", err))
			}
			resp.Body.Close()
		}
	}
	fmt.Println("Users created.")

	// --- Prepare concurrency test ---
	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup

	var reads int64
	var writes int64
	var successes int64
	var errors4xx int64
	var errors5xx int64

	latencySlices := make([][]float64, concurrency) // feed read latencies per goroutine

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			user := users[idx]
			rng := rand.New(rand.NewSource(int64(idx) + run))
			var localLatencies []float64

			for time.Now().Before(stopTime) {
				write := rng.Float64() < writeRatio
				start := time.Now()

				var resp *http.Response
				var err error
				if write {
					resp, err = send(http.MethodPost, "/users/"+user+"/posts", map[string]string{"text": fmt.Sprintf("load test post %d", time.Now().UnixNano())})
					atomic.AddInt64(&writes, 1)
				} else {
					resp, err = send(http.MethodGet, "/users/"+user+"/feed", nil)
					atomic.AddInt64(&reads, 1)
				}
				if err != nil {
					fmt.Printf("Request error: %v\n", err)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				if !write {
					localLatencies = append(localLatencies, time.Since(start).Seconds()*1000)
				}

				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					atomic.AddInt64(&successes, 1)
				case resp.StatusCode >= 400 && resp.StatusCode < 500:
					atomic.AddInt64(&errors4xx, 1)
				case resp.StatusCode >= 500:
					atomic.AddInt64(&errors5xx, 1)
				}
			}

			latencySlices[idx] = localLatencies
		}(i)
	}

	wg.Wait()

	// --- Merge all latencies ---
	var allLatencies []float64
	for _, slice := range latencySlices {
		allLatencies = append(allLatencies, slice...)
	}
	sort.Float64s(allLatencies)

	trimmedMeanVal := trimmedMean(allLatencies, trimPercent)
	p50 := percentile(allLatencies, 50)
	p90 := percentile(allLatencies, 90)
	p99 := percentile(allLatencies, 99)

	fmt.Printf("Feed reads: %d  Posts: %d  Successes: %d  4xx: %d  5xx: %d\n", reads, writes, successes, errors4xx, errors5xx)
	fmt.Printf("Feed latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n", trimmedMeanVal, p50, p90, p99)

	f, err := os.Create(csvFile)
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, d := range allLatencies {
		w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

// trimmedMean calculates mean latency after trimming top/bottom trimPercent values
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = (len(data) - 1) / 2
	}
	trimmed := data[trim : len(data)-trim]
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// percentile calculates the p-th percentile from sorted data
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	return data[f]*(float64(c)-k) + data[c]*(k-float64(f))
}
