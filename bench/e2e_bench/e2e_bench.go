package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"example.com/socialfeed/internal/models"
	"golang.org/x/sync/errgroup"
)

type feedResp struct {
	Posts []models.FeedEntry `json:"posts"`
}

type client struct {
	base string
	http *http.Client
}

// do sends a JSON request and decodes a 2xx JSON response into out.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func main() {
	// CLI flags
	var serverAddr string
	var U, F, P, concurrency int
	var pollTimeout int
	var insecure bool

	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 50, "number of users to create")
	flag.IntVar(&F, "follows", 10, "average follows per user")
	flag.IntVar(&P, "posts", 100, "number of posts to publish")
	flag.IntVar(&concurrency, "c", 20, "concurrency for posting")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for a post to show up in a feed")
	flag.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	flag.Parse()

	ctx := context.Background()
	c := &client{
		base: serverAddr,
		http: &http.Client{
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure}},
			Timeout:   10 * time.Second,
		},
	}

	// --- 1) Create users ---
	fmt.Printf("Creating %d users...\n", U)
	run := time.Now().UnixNano()
	users := make([]string, 0, U)
	for i := 0; i < U; i++ {
		id := fmt.Sprintf("bench-%d-%d", run, i)
		if err := c.do(ctx, http.MethodPost, "/users/"+id, nil, nil); err != nil {
			fmt.Printf("create user error: %v\n", err)
			os.Exit(1)
		}
		users = append(users, id)
	}
	fmt.Println("Users created successfully.")

	// --- 2) Create follow relationships between users ---
	fmt.Printf("Creating follows (~%d per user)...\n", F)
	followers := make(map[string][]string)
	for _, u := range users {
		seen := make(map[string]bool)
		for j := 0; j < F; j++ {
			followee := users[rand.Intn(len(users))]
			if followee == u || seen[followee] {
				continue
			}
			seen[followee] = true
			if err := c.do(ctx, http.MethodPut, "/users/"+u+"/following/"+followee, nil, nil); err != nil {
				fmt.Printf("follow error: %v\n", err)
				os.Exit(1)
			}
			followers[followee] = append(followers[followee], u)
		}
	}
	fmt.Println("Follow relationships established.")

	// --- 3) Publish posts concurrently ---
	fmt.Printf("Publishing %d posts with concurrency %d...\n", P, concurrency)
	var mu sync.Mutex
	published := make([]models.Post, 0, P)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < P; i++ {
		g.Go(func() error {
			author := users[rand.Intn(len(users))]
			var p models.Post
			if err := c.do(gctx, http.MethodPost, "/users/"+author+"/posts", map[string]string{"text": fmt.Sprintf("post %d", i)}, &p); err != nil {
				fmt.Printf("post error: %v\n", err)
				return nil
			}
			mu.Lock()
			published = append(published, p)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// --- 4) Verify posts reach followers' feeds ---
	fmt.Println("Checking feed visibility...")
	var latencies []float64
	var failCount int64
	var checks sync.WaitGroup

	for _, p := range published {
		for _, fid := range followers[p.AuthorID] {
			checks.Add(1)
			go func(p models.Post, fid string) {
				defer checks.Done()
				deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)

				// Poll the feed until the post appears or timeout
				for time.Now().Before(deadline) {
					var feed feedResp
					if err := c.do(ctx, http.MethodGet, "/users/"+fid+"/feed", nil, &feed); err == nil {
						for _, e := range feed.Posts {
							if e.PostID == p.ID {
								lat := time.Since(p.Time).Seconds() * 1000
								mu.Lock()
								latencies = append(latencies, lat)
								mu.Unlock()
								return
							}
						}
					}
					time.Sleep(200 * time.Millisecond)
				}

				mu.Lock()
				failCount++
				mu.Unlock()
			}(p, fid)
		}
	}

	checks.Wait()

	// --- 5) Compute latency statistics and export to CSV ---
	if len(latencies) == 0 {
		fmt.Println("No posts observed in feeds.")
		return
	}
	trimPercent := 1.0
	meanVal := trimmedMean(latencies, trimPercent)
	p50 := trimmedPercentile(latencies, 50, trimPercent)
	p90 := trimmedPercentile(latencies, 90, trimPercent)
	p99 := trimmedPercentile(latencies, 99, trimPercent)
	fmt.Printf("Visibility stats (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f fails=%d\n",
		len(latencies), meanVal, p50, p90, p99, failCount)

	f, err := os.Create("e2e_latencies.csv")
	if err != nil {
		fmt.Printf("create csv error: %v\n", err)
		return
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write([]string{"latency_ms"})
	for _, v := range latencies {
		w.Write([]string{fmt.Sprintf("%.3f", v)})
	}
	w.Flush()
	fmt.Println("Saved e2e_latencies.csv")
}

// trim drops trimPercent of the samples from each end of the sorted data.
func trim(data []float64, trimPercent float64) []float64 {
	sort.Float64s(data)
	n := int(float64(len(data)) * trimPercent / 100.0)
	if n*2 >= len(data) {
		n = (len(data) - 1) / 2
	}
	return data[n : len(data)-n]
}

func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	data = trim(data, trimPercent)
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func trimmedPercentile(data []float64, p float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return percentile(trim(data, trimPercent), p)
}

// percentile calculates the requested percentile using linear interpolation.
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
