package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// runCheck probes every configured model concurrently with a trivial
// chat call and reports which ones are reachable, without touching
// the repository or running a translation.
func runCheck(args []string, logger *slog.Logger) int {
	path, err := resolveConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(cfg.Models) == 0 {
		fmt.Fprintln(os.Stderr, "no models configured")
		return 1
	}

	var mu sync.Mutex
	results := make(map[string]error, len(cfg.Models))

	var g errgroup.Group
	for _, m := range cfg.Models {
		g.Go(func() error {
			chatter, err := buildChatter(m, logger)
			if err == nil {
				_, err = chatter.Chat([]string{"ping"})
			}
			mu.Lock()
			results[m.Name] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	failures := 0
	for _, name := range names {
		if err := results[name]; err != nil {
			fmt.Printf("%s: UNREACHABLE (%v)\n", name, err)
			failures++
		} else {
			fmt.Printf("%s: ok\n", name)
		}
	}
	if failures > 0 {
		return 1
	}
	return 0
}
