package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const logDateLayout = "2006-01-02"

// dailyLog writes to stdout and to app-YYYY-MM-DD.log in dir, switching
// files when the date changes and keeping retentionDays files.
type dailyLog struct {
	mu            sync.Mutex
	dir           string
	retentionDays int
	date          string
	file          *os.File
}

func setupLogger(dir string, retentionDays int) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	l := &dailyLog{dir: dir, retentionDays: retentionDays}
	if err := l.rotate(time.Now()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if err := l.rotate(now); err != nil {
					log.Printf("log rotation: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		l.mu.Lock()
		_ = l.file.Close()
		l.mu.Unlock()
	}, nil
}

func (l *dailyLog) rotate(now time.Time) error {
	date := now.Format(logDateLayout)
	l.mu.Lock()
	defer l.mu.Unlock()
	if date == l.date {
		return nil
	}
	file, err := os.OpenFile(filepath.Join(l.dir, "app-"+date+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	if l.file != nil {
		_ = l.file.Close()
	}
	l.file = file
	l.date = date
	pruneLogs(l.dir, now, l.retentionDays)
	return nil
}

func pruneLogs(dir string, now time.Time, retentionDays int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -(retentionDays - 1)).Format(logDateLayout)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, "app-"), ".log")
		if _, err := time.Parse(logDateLayout, date); err != nil {
			continue
		}
		if date < cutoff {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}
